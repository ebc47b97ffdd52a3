package filter

import "testing"

func TestApply_PageReset(t *testing.T) {
	base := State{Page: 7, Name: "rick", Status: StatusAlive}

	tests := []struct {
		name    string
		partial Partial
		want    State
	}{
		{
			name:    "name change resets page",
			partial: WithName("x"),
			want:    State{Page: 1, Name: "x", Status: StatusAlive},
		},
		{
			name:    "status change resets page",
			partial: WithStatus(StatusDead),
			want:    State{Page: 1, Name: "rick", Status: StatusDead},
		},
		{
			name:    "page change keeps constraints",
			partial: WithPage(3),
			want:    State{Page: 3, Name: "rick", Status: StatusAlive},
		},
		{
			name:    "name change wins over explicit page",
			partial: Partial{Name: ptr("morty"), Page: ptr(4)},
			want:    State{Page: 1, Name: "morty", Status: StatusAlive},
		},
		{
			name:    "same name keeps page",
			partial: WithName("rick"),
			want:    base,
		},
		{
			name:    "removing the name resets page",
			partial: WithName(""),
			want:    State{Page: 1, Status: StatusAlive},
		},
		{
			name:    "invalid status becomes absent and resets page",
			partial: WithStatus("Zombie"),
			want:    State{Page: 1, Name: "rick"},
		},
		{
			name:    "non-positive page is normalized",
			partial: WithPage(-2),
			want:    State{Page: 1, Name: "rick", Status: StatusAlive},
		},
		{
			name:    "empty partial is identity",
			partial: Partial{},
			want:    base,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(base, tt.partial)
			if got != tt.want {
				t.Errorf("Apply() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestApply_DoesNotMutate(t *testing.T) {
	current := State{Page: 2, Name: "rick"}
	_ = Apply(current, WithName("summer"))

	if current.Name != "rick" || current.Page != 2 {
		t.Errorf("Apply mutated its input: %+v", current)
	}
}

func TestClear(t *testing.T) {
	got := Clear(State{Page: 3, Name: "rick", Status: StatusDead})

	if got != (State{Page: 1}) {
		t.Errorf("Clear() = %+v, want page 1 with no constraints", got)
	}
	if got.Filtered() {
		t.Error("cleared state should not be filtered")
	}
}

func ptr[T any](v T) *T { return &v }
