// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package configure

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProperties(t *testing.T) {
	t.Run("will not modify the source mapping", func(t *testing.T) {
		src := map[string]string{"a": "1"}
		p := PropertiesOf(src)
		src["a"] = "2"

		v, ok := p.Get("a")
		require.True(t, ok)
		require.Equal(t, "1", v)
	})

	t.Run("will not modify the receiver", func(t *testing.T) {
		p := PropertiesOf(map[string]string{"a": "1", "b": "2"})

		q := p.With("c", "3").Without("a")
		r := p.Filter(func(k, _ string) bool { return k == "b" })
		s := p.Merge(PropertiesOf(map[string]string{"a": "9"}))

		require.Equal(t, map[string]string{"a": "1", "b": "2"}, p.Map())
		require.Equal(t, map[string]string{"b": "2", "c": "3"}, q.Map())
		require.Equal(t, map[string]string{"b": "2"}, r.Map())
		require.Equal(t, map[string]string{"a": "9", "b": "2"}, s.Map())
	})

	t.Run("will list keys in sorted order", func(t *testing.T) {
		p := PropertiesOf(map[string]string{"c": "", "a": "", "b": ""})
		require.Equal(t, []string{"a", "b", "c"}, p.Keys())
	})

	t.Run("will marshal as a plain JSON object", func(t *testing.T) {
		p := PropertiesOf(map[string]string{"a": "1"})

		b, err := json.Marshal(p)
		require.NoError(t, err)
		require.JSONEq(t, `{"a":"1"}`, string(b))

		var q Properties
		err = json.Unmarshal(b, &q)
		require.NoError(t, err)
		require.True(t, p.Equal(q))
	})

	t.Run("zero value behaves as an empty mapping", func(t *testing.T) {
		var p Properties
		require.Equal(t, 0, p.Len())
		require.Equal(t, map[string]string{}, p.Map())
		require.Equal(t, map[string]string{"a": "1"}, p.With("a", "1").Map())
	})
}
