package timeline

import (
	"reflect"
	"testing"

	"github.com/logflow/caseline/internal/model"
)

func TestGroup_PreservesOrder(t *testing.T) {
	a := stream("A", start(0), done(5))
	b := stream("B", start(1), done(2))
	events := []model.Event{a[0], b[0], b[1], a[1]}

	groups := Group(events)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if !reflect.DeepEqual(groups["A"], a) {
		t.Errorf("group A = %+v, want %+v", groups["A"], a)
	}
	if !reflect.DeepEqual(groups["B"], b) {
		t.Errorf("group B = %+v, want %+v", groups["B"], b)
	}
}

func TestGroup_Empty(t *testing.T) {
	if groups := Group(nil); len(groups) != 0 {
		t.Errorf("expected empty map, got %d groups", len(groups))
	}
}

func TestActivityOrder(t *testing.T) {
	events := []model.Event{
		{Activity: "W_Validate"}, {Activity: "A_Create"}, {Activity: "W_Validate"}, {Activity: "O_Sent"},
	}
	want := []string{"W_Validate", "A_Create", "O_Sent"}
	if got := ActivityOrder(events); !reflect.DeepEqual(got, want) {
		t.Errorf("ActivityOrder() = %v, want %v", got, want)
	}
}
