package interval

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestUnionAdd(t *testing.T) {
	tests := []struct {
		name string
		add  []Interval
		want []PosType
	}{
		{
			name: "disjoint",
			add:  []Interval{{"chr1", 5, 15}, {"chr1", 20, 25}},
			want: []PosType{5, 15, 20, 25},
		},
		{
			name: "overlapping",
			add:  []Interval{{"chr1", 5, 15}, {"chr1", 7, 17}, {"chr1", 20, 25}},
			want: []PosType{5, 17, 20, 25},
		},
		{
			name: "adjacent_merge",
			add:  []Interval{{"chr1", 5, 10}, {"chr1", 10, 15}},
			want: []PosType{5, 15},
		},
		{
			name: "bridging",
			add:  []Interval{{"chr1", 0, 10}, {"chr1", 20, 30}, {"chr1", 5, 25}},
			want: []PosType{0, 30},
		},
		{
			name: "contained_noop",
			add:  []Interval{{"chr1", 0, 100}, {"chr1", 10, 20}},
			want: []PosType{0, 100},
		},
		{
			name: "empty_ignored",
			add:  []Interval{{"chr1", 5, 5}, {"chr1", 10, 20}},
			want: []PosType{10, 20},
		},
	}
	for _, tt := range tests {
		u := NewUnion()
		for _, iv := range tt.add {
			u.Add(iv)
		}
		expect.EQ(t, u.endpoints["chr1"], tt.want, "%s", tt.name)
	}
}

func TestUnionAddIsOrderIndependent(t *testing.T) {
	ivs := []Interval{{"chr1", 0, 10}, {"chr1", 30, 40}, {"chr1", 8, 32}, {"chr1", 50, 60}}
	perms := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {2, 0, 3, 1}, {1, 3, 0, 2}}
	for _, perm := range perms {
		u := NewUnion()
		for _, idx := range perm {
			u.Add(ivs[idx])
		}
		expect.EQ(t, u.endpoints["chr1"], []PosType{0, 40, 50, 60}, "perm %v", perm)
	}
}

func TestUnionQueries(t *testing.T) {
	u := NewUnion()
	u.Add(Interval{"chr1", 10, 20})
	u.Add(Interval{"chr1", 30, 40})

	expect.True(t, u.Contains(Interval{"chr1", 12, 18}))
	expect.True(t, u.Contains(Interval{"chr1", 10, 20}))
	expect.False(t, u.Contains(Interval{"chr1", 15, 25}))
	expect.False(t, u.Contains(Interval{"chr1", 25, 28}))
	expect.False(t, u.Contains(Interval{"chr2", 12, 18}))

	expect.True(t, u.Intersects(Interval{"chr1", 15, 25}))
	expect.True(t, u.Intersects(Interval{"chr1", 0, 11}))
	expect.False(t, u.Intersects(Interval{"chr1", 20, 30}))
	expect.False(t, u.Intersects(Interval{"chr1", 40, 50}))
	expect.False(t, u.Intersects(Interval{"chr2", 15, 25}))

	expect.EQ(t, u.Overlap(Interval{"chr1", 15, 35}), []PosType{15, 20, 30, 35})
	expect.EQ(t, u.Overlap(Interval{"chr1", 0, 100}), []PosType{10, 20, 30, 40})
	var nilEps []PosType
	expect.EQ(t, u.Overlap(Interval{"chr1", 20, 30}), nilEps)

	expect.EQ(t, u.Gaps(Interval{"chr1", 0, 50}), []Interval{
		{"chr1", 0, 10},
		{"chr1", 20, 30},
		{"chr1", 40, 50},
	})
	expect.EQ(t, u.Gaps(Interval{"chr1", 12, 18}), []Interval(nil))
}

func TestUnionRemove(t *testing.T) {
	u := NewUnion()
	u.Add(Interval{"chr1", 0, 100})
	u.Remove(Interval{"chr1", 20, 30})
	expect.EQ(t, u.endpoints["chr1"], []PosType{0, 20, 30, 100})
	u.Remove(Interval{"chr1", 0, 20})
	expect.EQ(t, u.endpoints["chr1"], []PosType{30, 100})
	u.Remove(Interval{"chr1", 50, 200})
	expect.EQ(t, u.endpoints["chr1"], []PosType{30, 50})
	expect.False(t, u.Empty())
	u.Remove(Interval{"chr1", 0, PosTypeMax})
	expect.True(t, u.Empty())
}
