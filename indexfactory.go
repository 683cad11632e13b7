package memtx

import "hash/fnv"

// createIndex dispatches on def.Type to build a concrete [Index] (§4.3.4
// "create_index dispatches on type"). It runs [checkIndexDef] on def first
// and returns that error if def is invalid.
func createIndex(def *IndexDef) (Index, error) {
	if err := checkIndexDef(def); err != nil {
		return nil, err
	}

	switch def.Type {
	case IndexTypeHash:
		return newHashIndex(def, func(t *Tuple) (string, error) {
			k, err := keyFromTuple(def, t)
			if err != nil {
				return "", err
			}

			return encodeKey(k, len(def.Parts)), nil
		}), nil
	case IndexTypeTree:
		return newTreeIndex(def, func(t *Tuple) (Key, error) {
			return keyFromTuple(def, t)
		}), nil
	case IndexTypeRTree:
		return newRTreeIndex(def, func(t *Tuple) ([]float64, error) {
			k, err := keyFromTuple(def, t)
			if err != nil {
				return nil, err
			}

			return k[0].Array, nil
		}), nil
	case IndexTypeBitset:
		return newBitsetIndex(def, func(t *Tuple) (uint64, error) {
			k, err := keyFromTuple(def, t)
			if err != nil {
				return 0, err
			}

			if k[0].Type == FieldTypeString {
				h := fnv.New64a()
				_, _ = h.Write([]byte(k[0].Str))

				return h.Sum64(), nil
			}

			return k[0].Uint, nil
		}), nil
	default:
		return nil, &Error{Code: CodeIndexType, Reason: "unknown index type"}
	}
}
