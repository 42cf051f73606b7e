package sorter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/torq/filter"
)

func items() []filter.Item {
	return []filter.Item{
		filter.Fields{"name": "charlie", "size": int64(300), "ratio": 1.0},
		filter.Fields{"name": "Alpha", "size": int64(100), "ratio": 2.0},
		filter.Fields{"name": "bravo", "size": int64(300), "ratio": 0.5},
		filter.Fields{"name": "delta", "size": int64(200), "ratio": 2.0},
	}
}

func names(in []filter.Item) []string {
	out := make([]string, len(in))
	for i, it := range in {
		v, _ := it.Get("name")
		out[i] = v.(string)
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want []string
	}{
		{name: "default only", spec: "", want: []string{"Alpha", "bravo", "charlie", "delta"}},
		{name: "size with default tie break", spec: "size", want: []string{"Alpha", "delta", "bravo", "charlie"}},
		{name: "reversed size", spec: "!size", want: []string{"bravo", "charlie", "delta", "Alpha"}},
		{name: "dot reverses", spec: ".size", want: []string{"bravo", "charlie", "delta", "Alpha"}},
		{name: "first token is primary", spec: "ratio,!size", want: []string{"bravo", "charlie", "delta", "Alpha"}},
		{name: "reversed name", spec: "!name", want: []string{"delta", "charlie", "bravo", "Alpha"}},
		{name: "alias", spec: "sz,!n", want: []string{"Alpha", "delta", "charlie", "bravo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(Torrents, tt.spec)
			require.NoError(t, err)

			in := items()
			assert.Equal(t, tt.want, names(s.Apply(in)))
			assert.Equal(t, names(items()), names(in), "Apply must not reorder its input")
		})
	}
}

func TestApplyInPlaceAndFunc(t *testing.T) {
	s := MustParse(Torrents, "size")

	in := items()
	s.ApplyInPlace(in)
	assert.Equal(t, []string{"Alpha", "delta", "bravo", "charlie"}, names(in))

	type row struct{ item filter.Item }
	rows := []row{{items()[0]}, {items()[1]}}
	ApplyFunc(s, rows, func(r row) filter.Item { return r.item })
	assert.Equal(t, "Alpha", names([]filter.Item{rows[0].item})[0])
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(Torrents, "size,nmae")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownSort)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "nmae", perr.Token)
	assert.Contains(t, perr.Suggestions, "name")
}

func TestString(t *testing.T) {
	tests := []struct {
		spec string
		want string
	}{
		{spec: "", want: ""},
		{spec: "size", want: "size"},
		{spec: "!sz, n", want: "!size,name"},
		{spec: "..ratio", want: "ratio"},
		{spec: "size,size,!size", want: "size"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			s := MustParse(Torrents, tt.spec)
			assert.Equal(t, tt.want, s.String())
			assert.True(t, s.Equal(MustParse(Torrents, s.String())))
		})
	}
}

func TestAddRemove(t *testing.T) {
	base := MustParse(Torrents, "size,name")

	added, err := base.Add(MustParse(Torrents, "!size,ratio"))
	require.NoError(t, err)
	assert.Equal(t, "name,!size,ratio", added.String())
	assert.Equal(t, "size,name", base.String(), "sorters are immutable")

	removed, err := added.Remove(MustParse(Torrents, "name"))
	require.NoError(t, err)
	assert.Equal(t, "!size,ratio", removed.String())

	_, err = base.Add(MustParse(Files, "size"))
	assert.ErrorIs(t, err, ErrIncompatible)
	_, err = base.Remove(MustParse(Peers, "host"))
	assert.ErrorIs(t, err, ErrIncompatible)
}

func TestNeededKeys(t *testing.T) {
	assert.Equal(t, []string{"name", "ratio", "size"}, MustParse(Torrents, "size,!ratio").NeededKeys().Sorted())
	assert.Equal(t, []string{"tier"}, MustParse(Trackers, "").NeededKeys().Sorted())
}

func TestRegistries(t *testing.T) {
	for _, d := range []filter.Domain{filter.DomainTorrent, filter.DomainFile, filter.DomainPeer, filter.DomainTracker, filter.DomainSetting} {
		t.Run(string(d), func(t *testing.T) {
			r, ok := ForDomain(d)
			require.True(t, ok)
			require.NotNil(t, r.Default())

			specs := r.Specs()
			for i := 1; i < len(specs); i++ {
				assert.Less(t, specs[i-1].Name, specs[i].Name)
			}
		})
	}
}
