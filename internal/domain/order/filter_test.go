package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleOrders() []Order {
	return []Order{
		{ID: "1", Status: StatusUploaded},
		{ID: "2", Status: StatusDelivered},
		{ID: "3", Status: StatusRejected},
		{ID: "4", Status: StatusShipped},
		{ID: "5", Status: StatusCancelled},
		{ID: "6", Status: StatusUnknown},
	}
}

func TestFilterByStatus_Tabs(t *testing.T) {
	orders := sampleOrders()

	ids := func(os []Order) []string {
		out := make([]string, 0, len(os))
		for _, o := range os {
			out = append(out, o.ID)
		}
		return out
	}

	assert.Equal(t, []string{"1", "4"}, ids(FilterByStatus(orders, TabActive)))
	assert.Equal(t, []string{"2"}, ids(FilterByStatus(orders, TabCompleted)))
	assert.Equal(t, []string{"3", "5"}, ids(FilterByStatus(orders, TabCancelled)))
}

func TestFilterByStatus_DoesNotMutateInput(t *testing.T) {
	orders := sampleOrders()
	before := append([]Order(nil), orders...)

	for _, tab := range []StatusSet{TabActive, TabCompleted, TabCancelled, NewStatusSet()} {
		matched, excluded := Partition(orders, tab)
		assert.Equal(t, len(orders), len(matched)+len(excluded))
		_ = FilterByStatus(orders, tab)
		assert.Equal(t, before, orders)
	}
}

func TestFilterByStatus_ResultIsIndependent(t *testing.T) {
	orders := sampleOrders()
	active := FilterByStatus(orders, TabActive)
	active[0].Status = StatusCancelled
	assert.Equal(t, StatusUploaded, orders[0].Status)
}

func TestTabByName(t *testing.T) {
	for _, name := range []string{"active", "completed", "cancelled"} {
		_, ok := TabByName(name)
		assert.True(t, ok, name)
	}
	_, ok := TabByName("archived")
	assert.False(t, ok)
}
