package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quilt-athena/internal/domain"
)

func names(objs []domain.CatalogObject) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.Name
	}
	return out
}

func TestOrder(t *testing.T) {
	a, b := table("a"), table("b")
	av := view("a_view", a)
	bv := view("b_view", b)
	avv := view("a_view_view", domain.CatalogObject{Name: "a_view", Kind: domain.ObjectKindView})

	tests := []struct {
		name       string
		objects    []domain.CatalogObject
		wantLevels [][]string
		wantErr    string
	}{
		{name: "empty", objects: nil, wantLevels: nil},
		{name: "single", objects: []domain.CatalogObject{a}, wantLevels: [][]string{{"a"}}},
		{
			name:       "views_defined_first",
			objects:    []domain.CatalogObject{av, a},
			wantLevels: [][]string{{"a"}, {"a_view"}},
		},
		{
			name:       "two_families",
			objects:    []domain.CatalogObject{a, av, b, bv},
			wantLevels: [][]string{{"a", "b"}, {"a_view", "b_view"}},
		},
		{
			name:       "chain",
			objects:    []domain.CatalogObject{avv, av, a},
			wantLevels: [][]string{{"a"}, {"a_view"}, {"a_view_view"}},
		},
		{name: "unknown_dependency", objects: []domain.CatalogObject{bv}, wantErr: "unknown dependency"},
		{
			name: "cycle",
			objects: []domain.CatalogObject{
				{Name: "x", Kind: domain.ObjectKindView, DependsOn: &domain.ObjectRef{Name: "y", Kind: domain.ObjectKindView}},
				{Name: "y", Kind: domain.ObjectKindView, DependsOn: &domain.ObjectRef{Name: "x", Kind: domain.ObjectKindView}},
			},
			wantErr: "cycle detected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			levels, err := Order(tt.objects)
			if tt.wantErr != "" {
				var vErr *domain.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, levels, len(tt.wantLevels))
			for i, level := range levels {
				assert.Equal(t, tt.wantLevels[i], names(level), "level %d", i)
			}
		})
	}
}

func TestOrder_TablesBeforeDependentViews(t *testing.T) {
	levels, err := Order(Defaults())
	require.NoError(t, err)

	pos := make(map[domain.ObjectRef]int)
	for i, o := range Flatten(levels) {
		pos[o.Ref()] = i
	}
	for _, o := range Defaults() {
		if o.DependsOn != nil {
			assert.Less(t, pos[*o.DependsOn], pos[o.Ref()], "%s must follow %s", o.Ref(), *o.DependsOn)
		}
	}
}

func TestFamilies(t *testing.T) {
	families, err := Families(Defaults())
	require.NoError(t, err)
	require.Len(t, families, 2)
	assert.Equal(t, []string{"manifests", "manifests_view"}, names(families[0]))
	assert.Equal(t, []string{"named_packages", "named_packages_view"}, names(families[1]))
}

func TestFamilies_Independent(t *testing.T) {
	families, err := Families([]domain.CatalogObject{table("a"), table("b"), table("c")})
	require.NoError(t, err)
	require.Len(t, families, 3)
	for _, f := range families {
		assert.Len(t, f, 1)
	}
}
