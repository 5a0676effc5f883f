package jsondoc

import "fmt"

type ArrayMergeStrategy string

const (
	// ArrayMergeByID merges object elements sharing the same "id" and appends the others.
	ArrayMergeByID ArrayMergeStrategy = "by-id"
	// ArrayMergeReplace replaces the old array with the new one.
	ArrayMergeReplace ArrayMergeStrategy = "replace"
	// ArrayMergeConcat appends the new elements to the old ones.
	ArrayMergeConcat ArrayMergeStrategy = "concat"
)

func ParseArrayMergeStrategy(s string) (ArrayMergeStrategy, error) {
	switch ArrayMergeStrategy(s) {
	case "":
		return ArrayMergeByID, nil
	case ArrayMergeByID, ArrayMergeReplace, ArrayMergeConcat:
		return ArrayMergeStrategy(s), nil
	}
	return "", fmt.Errorf("unsupported array merge strategy '%s'", s)
}

// Merge deep merges patch into base and returns a new document, neither input is modified.
// Object keys merge recursively, scalars from patch win, arrays follow the strategy.
func Merge(base, patch Document, strategy ArrayMergeStrategy) Document {
	if strategy == "" {
		strategy = ArrayMergeByID
	}
	if base == nil && patch == nil {
		return nil
	}
	return mergeObjects(base.Clone(), patch, strategy)
}

func mergeObjects(dst map[string]interface{}, src map[string]interface{}, strategy ArrayMergeStrategy) map[string]interface{} {
	if dst == nil {
		dst = map[string]interface{}{}
	}
	for k, sv := range src {
		dst[k] = mergeValues(dst[k], sv, strategy)
	}
	return dst
}

func mergeValues(prev, next interface{}, strategy ArrayMergeStrategy) interface{} {
	if next == nil {
		return nil
	}
	if newObj, ok := asObject(next); ok {
		if oldObj, ok := asObject(prev); ok {
			return mergeObjects(oldObj, newObj, strategy)
		}
		return deepCopy(newObj)
	}
	if newArr, ok := next.([]interface{}); ok {
		if oldArr, ok := prev.([]interface{}); ok {
			return mergeArrays(oldArr, newArr, strategy)
		}
		return deepCopy(newArr)
	}
	return next
}

func mergeArrays(prev, next []interface{}, strategy ArrayMergeStrategy) []interface{} {
	switch strategy {
	case ArrayMergeReplace:
		return deepCopy(next).([]interface{})
	case ArrayMergeConcat:
		return append(prev, deepCopy(next).([]interface{})...)
	}

	if !allIdentified(prev) || !allIdentified(next) {
		return deepCopy(next).([]interface{})
	}
	index := make(map[string]int, len(prev))
	for i, e := range prev {
		index[elementID(e)] = i
	}
	result := prev
	for _, e := range next {
		id := elementID(e)
		if i, found := index[id]; found {
			result[i] = mergeValues(result[i], e, ArrayMergeByID)
			continue
		}
		index[id] = len(result)
		result = append(result, deepCopy(e))
	}
	return result
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case Document:
		return t, true
	}
	return nil, false
}

func allIdentified(elements []interface{}) bool {
	for _, e := range elements {
		if elementID(e) == "" {
			return false
		}
	}
	return true
}

func elementID(e interface{}) string {
	obj, ok := asObject(e)
	if !ok {
		return ""
	}
	switch id := obj["id"].(type) {
	case string:
		return id
	case float64, int, int64, uint64:
		return fmt.Sprint(id)
	}
	return ""
}
