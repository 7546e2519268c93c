package env

import (
	"fmt"
	"strings"
)

// IncompleteError lists every environment whose configuration is unusable.
type IncompleteError struct {
	Envs    []Name
	Missing map[Name][]string
}

func (e *IncompleteError) Error() string {
	parts := make([]string, 0, len(e.Envs))
	for _, n := range e.Envs {
		parts = append(parts, fmt.Sprintf("%s (missing %s)", n, strings.Join(e.Missing[n], ", ")))
	}
	return "incomplete database configuration: " + strings.Join(parts, "; ")
}

// Validate checks every known environment, not only the ones that will be
// used. It returns *IncompleteError naming all failing environments.
func Validate(cfgs Configs) error {
	var bad *IncompleteError
	for _, n := range all {
		c, ok := cfgs[n]
		var missing []string
		if !ok {
			missing = []string{"host", "user", "password", "database"}
		} else {
			missing = c.missing()
		}
		if len(missing) == 0 {
			continue
		}
		if bad == nil {
			bad = &IncompleteError{Missing: map[Name][]string{}}
		}
		bad.Envs = append(bad.Envs, n)
		bad.Missing[n] = missing
	}
	if bad != nil {
		return bad
	}
	return nil
}
