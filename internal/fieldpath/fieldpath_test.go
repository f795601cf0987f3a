package fieldpath

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestResolve(t *testing.T) {
	data := map[string]any{
		"customer": map[string]any{
			"name": "Acme",
			"address": map[string]any{
				"city": "Pune",
			},
		},
		"balance": float64(500),
		"empty":   nil,
	}

	cases := []struct {
		name   string
		path   string
		want   any
		wantOk bool
	}{
		{"top level", "balance", float64(500), true},
		{"nested", "customer.name", "Acme", true},
		{"deep nested", "customer.address.city", "Pune", true},
		{"missing top", "invoice", nil, false},
		{"missing nested", "customer.phone", nil, false},
		{"through scalar", "balance.currency", nil, false},
		{"through nil", "empty.anything", nil, false},
		{"past leaf", "customer.name.first", nil, false},
		{"empty path", "", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Resolve(data, tc.path)
			if ok != tc.wantOk {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tc.path, ok, tc.wantOk)
			}
			if ok && got != tc.want {
				t.Errorf("Resolve(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestResolve_NilData(t *testing.T) {
	if _, ok := Resolve(nil, "a.b"); ok {
		t.Error("Resolve(nil, ...) should not report ok")
	}
}

// Resolution must never panic, whatever the path or data shape.
func TestResolve_NeverPanics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	// Mapping with a *GenResult mapper keeps the declared ResultType as `any`;
	// a plain `func(T) any` mapper trips gopter's *GenResult detection because
	// *GenResult is assignable to any.
	asAny := func(r *gopter.GenResult) *gopter.GenResult {
		return &gopter.GenResult{
			Shrinker:   gopter.NoShrinker,
			Result:     r.Result,
			Labels:     r.Labels,
			ResultType: reflect.TypeOf((*any)(nil)).Elem(),
		}
	}
	genValue := gen.OneGenOf(
		gen.AlphaString().Map(asAny),
		gen.Float64().Map(asAny),
		gen.Bool().Map(asAny),
	)
	genData := gen.MapOf(gen.Identifier(), genValue)

	properties.Property("resolve is total", prop.ForAll(
		func(data map[string]any, path string) bool {
			Resolve(data, path)
			return true
		},
		genData,
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
