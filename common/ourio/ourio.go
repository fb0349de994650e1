//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
package ourio

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"
)

// WriteFileIfDifferent writes data to filename unless it already has exactly
// this content. The new content is written to a temporary file next to
// filename and renamed over it, so readers never see a partial file.
// Returns true if the file was created or updated.
func WriteFileIfDifferent(filename string, data []byte, perm os.FileMode) (bool, error) {
	exData, err := ioutil.ReadFile(filename)
	if err == nil && bytes.Equal(exData, data) {
		return false, nil
	}

	tf, err := ioutil.TempFile(filepath.Dir(filename), "."+filepath.Base(filename)+".")
	if err != nil {
		return false, errors.Trace(err)
	}
	tmpName := tf.Name()
	defer os.Remove(tmpName)
	if _, err := tf.Write(data); err != nil {
		tf.Close()
		return false, errors.Annotatef(err, "%s", tmpName)
	}
	if err := tf.Close(); err != nil {
		return false, errors.Annotatef(err, "%s", tmpName)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return false, errors.Trace(err)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

// WriteYAMLFileIfDifferent writes s as YAML to filename, see WriteFileIfDifferent.
func WriteYAMLFileIfDifferent(filename string, s interface{}, perm os.FileMode) (bool, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return false, errors.Trace(err)
	}
	return WriteFileIfDifferent(filename, data, perm)
}
