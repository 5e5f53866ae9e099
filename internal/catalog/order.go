package catalog

import (
	"sort"

	"quilt-athena/internal/domain"
)

// Order computes a topological ordering of catalog objects using Kahn's
// algorithm. Each returned level only depends on earlier levels. Within a
// level, objects keep their definition order. Returns a validation error if
// the dependency graph has a cycle or an unknown dependency.
func Order(objects []domain.CatalogObject) ([][]domain.CatalogObject, error) {
	if len(objects) == 0 {
		return nil, nil
	}

	index := make(map[domain.ObjectRef]int, len(objects))
	for i, o := range objects {
		index[o.Ref()] = i
	}

	inDegree := make([]int, len(objects))
	dependents := make(map[int][]int) // dependency index → indexes depending on it
	for i, o := range objects {
		if o.DependsOn == nil {
			continue
		}
		dep, ok := index[*o.DependsOn]
		if !ok {
			return nil, domain.ErrValidation("%s: unknown dependency %s", o.Ref(), *o.DependsOn)
		}
		if dep == i {
			return nil, domain.ErrValidation("self dependency: %s", o.Ref())
		}
		dependents[dep] = append(dependents[dep], i)
		inDegree[i]++
	}

	var queue []int
	for i, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, i)
		}
	}

	var levels [][]domain.CatalogObject
	processed := 0
	for len(queue) > 0 {
		sort.Ints(queue)
		level := make([]domain.CatalogObject, len(queue))
		for j, i := range queue {
			level[j] = objects[i]
		}
		levels = append(levels, level)
		processed += len(queue)

		var next []int
		for _, i := range queue {
			for _, d := range dependents[i] {
				inDegree[d]--
				if inDegree[d] == 0 {
					next = append(next, d)
				}
			}
		}
		queue = next
	}

	if processed != len(objects) {
		return nil, domain.ErrValidation("cycle detected in catalog dependencies")
	}
	return levels, nil
}

// Flatten returns the objects of levels in execution order.
func Flatten(levels [][]domain.CatalogObject) []domain.CatalogObject {
	var out []domain.CatalogObject
	for _, level := range levels {
		out = append(out, level...)
	}
	return out
}

// Families partitions objects into independent groups (connected components
// of the dependency graph), each returned in topological order. Families are
// ordered by the position of their first defined object.
func Families(objects []domain.CatalogObject) ([][]domain.CatalogObject, error) {
	levels, err := Order(objects)
	if err != nil {
		return nil, err
	}

	parent := make(map[domain.ObjectRef]domain.ObjectRef, len(objects))
	var find func(r domain.ObjectRef) domain.ObjectRef
	find = func(r domain.ObjectRef) domain.ObjectRef {
		p, ok := parent[r]
		if !ok || p == r {
			return r
		}
		root := find(p)
		parent[r] = root
		return root
	}
	for _, o := range objects {
		parent[o.Ref()] = o.Ref()
	}
	for _, o := range objects {
		if o.DependsOn != nil {
			a, b := find(o.Ref()), find(*o.DependsOn)
			if a != b {
				parent[a] = b
			}
		}
	}

	familyOf := make(map[domain.ObjectRef]int)
	var roots []domain.ObjectRef
	for _, o := range objects {
		root := find(o.Ref())
		if _, ok := familyOf[root]; !ok {
			familyOf[root] = len(roots)
			roots = append(roots, root)
		}
	}

	families := make([][]domain.CatalogObject, len(roots))
	for _, o := range Flatten(levels) {
		f := familyOf[find(o.Ref())]
		families[f] = append(families[f], o)
	}
	return families, nil
}
