package application

import (
	"fmt"
	"sort"
	"strings"
)

// Registry holds the fetchers and checks a run can select from.
type Registry struct {
	fetchers map[string]Fetcher
	checks   map[string]Check
	fOrder   []string
	cOrder   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: map[string]Fetcher{}, checks: map[string]Check{}}
}

// AddFetchers registers fetchers in execution order. A duplicate name
// replaces the earlier fetcher in place.
func (r *Registry) AddFetchers(fs ...Fetcher) {
	for _, f := range fs {
		if _, ok := r.fetchers[f.Name()]; !ok {
			r.fOrder = append(r.fOrder, f.Name())
		}
		r.fetchers[f.Name()] = f
	}
}

// AddChecks registers checks in execution order.
func (r *Registry) AddChecks(cs ...Check) {
	for _, c := range cs {
		if _, ok := r.checks[c.Name()]; !ok {
			r.cOrder = append(r.cOrder, c.Name())
		}
		r.checks[c.Name()] = c
	}
}

// Fetchers returns the fetchers matching names, in registration order. No
// names selects every fetcher. A name ending in ".*" or naming a family
// ("github") selects every fetcher of that family.
func (r *Registry) Fetchers(names ...string) ([]Fetcher, error) {
	picked, err := selectNames(r.fOrder, names, "fetcher")
	if err != nil {
		return nil, err
	}
	out := make([]Fetcher, len(picked))
	for i, n := range picked {
		out[i] = r.fetchers[n]
	}
	return out, nil
}

// Checks returns the checks matching names, like Fetchers.
func (r *Registry) Checks(names ...string) ([]Check, error) {
	picked, err := selectNames(r.cOrder, names, "check")
	if err != nil {
		return nil, err
	}
	out := make([]Check, len(picked))
	for i, n := range picked {
		out[i] = r.checks[n]
	}
	return out, nil
}

func selectNames(order, names []string, kind string) ([]string, error) {
	if len(names) == 0 {
		return append([]string(nil), order...), nil
	}
	want := map[string]bool{}
	for _, name := range names {
		family := strings.TrimSuffix(name, ".*")
		matched := false
		for _, n := range order {
			if n == name || strings.HasPrefix(n, family+".") {
				want[n] = true
				matched = true
			}
		}
		if !matched {
			known := append([]string(nil), order...)
			sort.Strings(known)
			return nil, fmt.Errorf("unknown %s %q (known: %s)", kind, name, strings.Join(known, ", "))
		}
	}
	var out []string
	for _, n := range order {
		if want[n] {
			out = append(out, n)
		}
	}
	return out, nil
}
