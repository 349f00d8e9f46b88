package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"sorted keys", map[string]any{"b": 1, "a": "x"}, `{"a":"x","b":1}`},
		{"nested", map[string]any{"l": []any{true, int64(2), "s"}}, `{"l":[true,2,"s"]}`},
		{"no html escaping", "<a&b>", `"<a&b>"`},
		{"nfc", "e\u0301", "\"\u00e9\""},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
		{"escaped backslash kept", `a\u2028`, `"a\\u2028"`},
		{"control escaped", "a\nb", `"a\nb"`},
		{"empty object", map[string]any{}, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonicalRejects(t *testing.T) {
	for _, in := range []any{nil, 1.5, float32(2), struct{}{}, []any{nil}, map[string]any{"k": nil}} {
		_, err := MarshalCanonical(in)
		assert.Error(t, err, "%#v", in)
	}
}

func TestCompareUTF16(t *testing.T) {
	// U+FF61 sorts after U+1F600 in UTF-8 but before it in UTF-16, where the
	// emoji is a surrogate pair starting 0xD83D.
	assert.Less(t, compareUTF16("\U0001F600", "\uFF61"), 0)
	assert.Equal(t, 0, compareUTF16("abc", "abc"))
	assert.Greater(t, compareUTF16("b", "a"), 0)
}
