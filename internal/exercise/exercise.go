// Package exercise holds the fixed catalog of exercises the server scores.
// Ids are part of the wire contract and never change.
package exercise

// Server-assigned exercise ids.
const (
	PushUp = 1
	Squat  = 2
	Plank  = 3
	SitUp  = 4
)

// Exercise describes one entry in the catalog.
type Exercise struct {
	ID           int
	Name         string
	Category     string
	IsStaticHold bool
}

var catalog = map[int]Exercise{
	PushUp: {ID: PushUp, Name: "Push-Up", Category: "push"},
	Squat:  {ID: Squat, Name: "Squat", Category: "legs"},
	Plank:  {ID: Plank, Name: "Plank", Category: "core", IsStaticHold: true},
	SitUp:  {ID: SitUp, Name: "Sit-Up", Category: "core"},
}

// ByID looks up an exercise. ok is false for ids outside the catalog;
// callers are expected to fail soft on those.
func ByID(id int) (Exercise, bool) {
	ex, ok := catalog[id]
	return ex, ok
}

// IsStaticHold reports whether the exercise scores by hold duration rather
// than rep count. Unknown ids are treated as rep-counted.
func IsStaticHold(id int) bool {
	return catalog[id].IsStaticHold
}

// All returns the catalog in id order.
func All() []Exercise {
	out := make([]Exercise, 0, len(catalog))
	for id := PushUp; id <= SitUp; id++ {
		out = append(out, catalog[id])
	}
	return out
}
