package config

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/sodistec/sodistec/utils"
)

// AttributeMap holds the backend specific attributes of a camera, decoded by the backend that
// owns them.
type AttributeMap map[string]interface{}

// TransformAttributeMap decodes the attributes into a new value of type T, using json tags for
// field names. T may be a struct or a pointer to a struct.
func TransformAttributeMap[T any](attributes AttributeMap) (T, error) {
	var out T
	toT := reflect.TypeOf(out)
	if toT == nil {
		return out, nil
	}

	var forResult interface{} = &out
	if toT.Kind() == reflect.Ptr {
		var ok bool
		allocated := reflect.New(toT.Elem()).Interface()
		if out, ok = allocated.(T); !ok {
			return out, utils.NewUnexpectedTypeError(out, allocated)
		}
		forResult = out
	}
	if _, err := decode(map[string]interface{}(attributes), forResult); err != nil {
		return out, errors.Wrapf(err, "cannot decode attributes into %T", out)
	}
	return out, nil
}
