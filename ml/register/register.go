// Package register registers all model frameworks.
package register

import (
	// for models.
	_ "github.com/sodistec/sodistec/ml/darknet"
	_ "github.com/sodistec/sodistec/ml/fake"
)
