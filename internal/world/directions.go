package world

import "strings"

var directionAliases = map[string]string{
	"n":  "north",
	"s":  "south",
	"e":  "east",
	"w":  "west",
	"u":  "up",
	"d":  "down",
	"ne": "northeast",
	"nw": "northwest",
	"se": "southeast",
	"sw": "southwest",
}

var oppositeDirections = map[string]string{
	"north":     "south",
	"south":     "north",
	"east":      "west",
	"west":      "east",
	"up":        "below",
	"down":      "above",
	"northeast": "southwest",
	"northwest": "southeast",
	"southeast": "northwest",
	"southwest": "northeast",
	"in":        "outside",
	"out":       "inside",
}

// NormalizeDirection lowercases dir and expands single-letter shorthand like
// "n" to "north". Unrecognized input is returned lowercased but otherwise
// unchanged.
func NormalizeDirection(dir string) string {
	dir = strings.ToLower(dir)
	if full, ok := directionAliases[dir]; ok {
		return full
	}
	return dir
}

// IsDirection reports whether dir names a known direction, in either full or
// shorthand form.
func IsDirection(dir string) bool {
	_, ok := oppositeDirections[NormalizeDirection(dir)]
	return ok
}

// OppositeDirection names where a mover arrived from, for arrival notices.
func OppositeDirection(dir string) string {
	if opp, ok := oppositeDirections[NormalizeDirection(dir)]; ok {
		return opp
	}
	return "elsewhere"
}
