package apiclient_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaneb/seaneb-auth/pkg/apiclient"
)

func TestResponse_Rows(t *testing.T) {
	paths := []string{"", "data", "categories", "data.categories", "rows"}

	tests := []struct {
		name string
		body string
		want []map[string]any
	}{
		{
			name: "bare array",
			body: `[{"id":"1"}]`,
			want: []map[string]any{{"id": "1"}},
		},
		{
			name: "data array",
			body: `{"data":[{"id":"2"}]}`,
			want: []map[string]any{{"id": "2"}},
		},
		{
			name: "nested under data",
			body: `{"data":{"categories":[{"id":"3"}]}}`,
			want: []map[string]any{{"id": "3"}},
		},
		{
			name: "rows",
			body: `{"rows":[{"id":"4"},"skipped"]}`,
			want: []map[string]any{{"id": "4"}},
		},
		{
			name: "first array wins even when empty",
			body: `{"data":[],"rows":[{"id":"5"}]}`,
			want: []map[string]any{},
		},
		{
			name: "no array",
			body: `{"data":{"count":0}}`,
			want: nil,
		},
		{
			name: "not json",
			body: `<html>`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &apiclient.Response{Body: []byte(tt.body)}
			got := resp.Rows(paths...)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Rows() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeRows(t *testing.T) {
	type row struct {
		ID   string `mapstructure:"id"`
		Name string `mapstructure:"name"`
	}

	got, err := apiclient.DecodeRows[row]([]map[string]any{
		{"id": float64(12), "name": "Real Estate", "extra": true},
		{"id": "x", "name": nil},
	})
	require.NoError(t, err)

	assert.Equal(t, []row{{ID: "12", Name: "Real Estate"}, {ID: "x"}}, got)
}
