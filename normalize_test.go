package directlink

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		given      Value
		wantResult Result
		wantErr    error
	}{
		"mapping with download_link": {
			given: Mapping(map[string]any{"download_link": "X"}),
			wantResult: Result{
				DirectLink: "X",
				FileInfo:   map[string]any{"download_link": "X"},
			},
		},
		"mapping with only link": {
			given: Mapping(map[string]any{"link": "Y", "name": "file.mp4"}),
			wantResult: Result{
				DirectLink: "Y",
				FileInfo:   map[string]any{"link": "Y", "name": "file.mp4"},
			},
		},
		"mapping key priority": {
			given: Mapping(map[string]any{"link": "4", "url": "3", "direct_link": "2"}),
			wantResult: Result{
				DirectLink: "2",
				FileInfo:   map[string]any{"link": "4", "url": "3", "direct_link": "2"},
			},
		},
		"empty higher priority key is skipped": {
			given: Mapping(map[string]any{"download_link": "", "url": "U"}),
			wantResult: Result{
				DirectLink: "U",
				FileInfo:   map[string]any{"download_link": "", "url": "U"},
			},
		},
		"non-string link values are not coerced": {
			given:   Mapping(map[string]any{"download_link": 42, "link": true}),
			wantErr: ErrNoDirectLink,
		},
		"mapping without recognized key": {
			given:   Mapping(map[string]any{"foo": "bar"}),
			wantErr: ErrNoDirectLink,
		},
		"empty mapping": {
			given:   Mapping(map[string]any{}),
			wantErr: ErrNoDirectLink,
		},
		"text": {
			given: Text("Z"),
			wantResult: Result{
				DirectLink: "Z",
				FileInfo:   map[string]any{"url": "Z"},
			},
		},
		"empty text": {
			given:   Text(""),
			wantErr: ErrNoDirectLink,
		},
		"list uses first element only": {
			given: List(
				Mapping(map[string]any{"url": "A"}),
				Mapping(map[string]any{"url": "B"}),
			),
			wantResult: Result{
				DirectLink: "A",
				FileInfo:   map[string]any{"url": "A"},
			},
		},
		"list first element text": {
			given: List(Text("A"), Text("B")),
			wantResult: Result{
				DirectLink: "A",
				FileInfo:   map[string]any{"url": "A"},
			},
		},
		"list first element unusable, rest ignored": {
			given:   List(Mapping(map[string]any{"foo": "bar"}), Text("B")),
			wantErr: ErrNoDirectLink,
		},
		"nested list is not unwrapped": {
			given:   List(List(Text("A"))),
			wantErr: ErrNoDirectLink,
		},
		"empty list": {
			given:   List(),
			wantErr: ErrNoDirectLink,
		},
		"invalid value": {
			given:   Value{},
			wantErr: ErrNoDirectLink,
		},
	}
	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			result, err := Normalize(tc.given)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, tc.wantResult, result)
		})
	}
}

func TestFromAny(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		json     string
		wantKind Kind
		wantLink string
	}{
		"object":       {`{"direct_link": "https://d.example/f"}`, KindMapping, "https://d.example/f"},
		"string":       {`"https://d.example/f"`, KindText, "https://d.example/f"},
		"list":         {`[{"url": "https://d.example/a"}, "b"]`, KindList, "https://d.example/a"},
		"number":       {`42`, KindInvalid, ""},
		"bool":         {`true`, KindInvalid, ""},
		"null":         {`null`, KindInvalid, ""},
		"list of junk": {`[1, 2]`, KindList, ""},
		"empty list":   {`[]`, KindList, ""},
		"empty object": {`{}`, KindMapping, ""},
		"empty string": {`""`, KindText, ""},
		"extra fields": {`{"url": "u", "size": 1234, "name": "f.zip"}`, KindMapping, "u"},
	}
	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var raw any
			assert.NoError(t, json.Unmarshal([]byte(tc.json), &raw))

			v := FromAny(raw)
			assert.Equal(t, tc.wantKind, v.Kind())

			result, err := Normalize(v)
			if tc.wantLink == "" {
				assert.ErrorIs(t, err, ErrNoDirectLink)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.wantLink, result.DirectLink)
		})
	}
}

func TestValueMarshalJSON(t *testing.T) {
	t.Parallel()

	v := List(Mapping(map[string]any{"url": "A"}), Text("B"), Value{}, List())
	b, err := json.Marshal(v)
	assert.NoError(t, err)
	assert.JSONEq(t, `[{"url": "A"}, "B", null, []]`, string(b))
}
