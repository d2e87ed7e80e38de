package version

import "fmt"

// Release codenames are historic bicycle designs.
var codenames = []string{
	"penny-farthing", // 0
	"safety",
	"sociable",
	"duet",
}

const (
	Major = 0
	Minor = 2
	Patch = 0
)

func Codename() string {
	if Major < len(codenames) {
		return codenames[Major]
	}
	return fmt.Sprintf("post-%s-%d", codenames[len(codenames)-1], Major)
}

func String() string {
	return fmt.Sprintf("%s-%d.%d.%d", Codename(), Major, Minor, Patch)
}

func Short() string {
	return fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
}
