/*
Copyright 2020 GramLabs, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package pkgsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSourceFetchValidSchema(t *testing.T) {
	dir := t.TempDir()
	schema := `{"type":"object","properties":{"replicaCount":{"type":"integer","default":1}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "values.schema.json"), []byte(schema), 0o644))

	src := FileSource{Name: "test", Path: "values.schema.json", ProjectRoot: dir}
	out, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(out), `"replicaCount"`)
}

func TestFileSourceFetchNotFound(t *testing.T) {
	dir := t.TempDir()
	src := FileSource{Name: "test", Path: "missing.json", ProjectRoot: dir}
	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestFileSourceFetchInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("not json"), 0o644))
	src := FileSource{Name: "test", Path: "bad.json", ProjectRoot: dir}
	_, err := src.Fetch(context.Background())
	require.Error(t, err)
}

func TestFileSourceFetchRejectsNonObjectSchema(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"type":"string"}`), 0o644))
	src := FileSource{Name: "test", Path: "bad.json", ProjectRoot: dir}
	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must have type")
}

func TestFileSourceFetchAcceptsPropertiesOnlySchema(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.json"), []byte(`{"properties":{"name":{"type":"string"}}}`), 0o644))
	src := FileSource{Name: "test", Path: "schema.json", ProjectRoot: dir}
	out, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(out), "name")
}

func TestResolveAllEmpty(t *testing.T) {
	result, err := ResolveAll(context.Background(), map[string]Source{})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestResolveAllFileSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "values.schema.json"), []byte(`{"type":"object","properties":{"replicas":{"type":"integer"}}}`), 0o644))

	sources := map[string]Source{
		"my-chart": FileSource{Name: "my-chart", Path: "values.schema.json", ProjectRoot: dir},
	}
	result, err := ResolveAll(context.Background(), sources)
	require.NoError(t, err)
	assert.Len(t, result, 1)
	assert.Contains(t, result, "my-chart")
}

func TestCacheHashDeterministic(t *testing.T) {
	h1 := cacheHash("https://kubernetes.github.io/ingress-nginx")
	h2 := cacheHash("https://kubernetes.github.io/ingress-nginx")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 16)
}

func TestCacheHashDifferentInputs(t *testing.T) {
	assert.NotEqual(t, cacheHash("repo-a"), cacheHash("repo-b"))
}

func TestCachePutThenGet(t *testing.T) {
	c := Cache{Dir: t.TempDir()}
	require.NoError(t, c.Put("helm/oci", "oci://example/chart", "1.0.0", []byte(`{"type":"object"}`)))

	data, ok, err := c.Get("helm/oci", "oci://example/chart", "1.0.0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"type":"object"}`, string(data))
}

func TestCacheGetMissReportsNotOK(t *testing.T) {
	c := Cache{Dir: t.TempDir()}
	_, ok, err := c.Get("helm/oci", "missing", "1.0.0")
	require.NoError(t, err)
	assert.False(t, ok)
}
