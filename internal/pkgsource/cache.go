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
	"fmt"
	"os"
	"path/filepath"
)

// cacheHash is the djb2 string hash used to name cache subdirectories for
// a given source key (URL, OCI reference, git repo+path, ...).
func cacheHash(s string) string {
	var hash uint64 = 5381
	for i := 0; i < len(s); i++ {
		hash = hash*33 + uint64(s[i])
	}
	return fmt.Sprintf("%016x", hash)
}

// Cache stores fetched schema documents on disk, keyed by cacheHash(key)
// under Dir, so repeated resolution of the same remote reference doesn't
// refetch it.
type Cache struct {
	Dir string
}

// Path returns the on-disk path a schema for key would be cached at under
// subdir (e.g. "helm/oci"), named version.
func (c Cache) Path(subdir, key, version string) string {
	return filepath.Join(c.Dir, subdir, cacheHash(key), version+".json")
}

// Get reads a cached entry, reporting whether it was present.
func (c Cache) Get(subdir, key, version string) ([]byte, bool, error) {
	path := c.Path(subdir, key, version)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// Put writes data to the cache for key, via a temp file plus atomic
// rename so a concurrent reader never observes a partially written file.
func (c Cache) Put(subdir, key, version string, data []byte) error {
	path := c.Path(subdir, key, version)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
