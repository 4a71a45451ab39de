// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package paramstore persists the values of learnable variables (e.g. the ones of parametric activations)
// in a Badger key-value store.
//
// Values are keyed by context.Variable.ParameterName. Restoring replaces the value of the variables in place
// (see context.Variable.SetValue), so activations holding the variables see the restored values.
package paramstore

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

// ErrNotFound is returned by Restore when a variable was never saved.
var ErrNotFound = errors.New("variable not found in parameter store")

// Encodings of the values.
const (
	EncodingRaw     = "raw"
	EncodingFloat16 = "float16"
)

// header precedes the values of each variable.
type header struct {
	DType      string `json:"dtype"`
	Dimensions []int  `json:"dimensions"`
	Encoding   string `json:"encoding"`
}

// Store of variable values.
type Store struct {
	db            *badger.DB
	halfPrecision bool
}

// Option for Open and OpenInMemory.
type Option func(s *Store)

// WithHalfPrecision stores Float32 values as IEEE 754 half-precision floats, halving the space used.
// Float64 values are always stored in full.
func WithHalfPrecision() Option {
	return func(s *Store) { s.halfPrecision = true }
}

// Open the store in directory dir, creating it if needed.
func Open(dir string, opts ...Option) (*Store, error) {
	return open(badger.DefaultOptions(dir), opts)
}

// OpenInMemory opens a store that is never written to disk.
func OpenInMemory(opts ...Option) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), opts)
}

func open(dbOpts badger.Options, opts []Option) (*Store, error) {
	dbOpts.Logger = klogLogger{}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open parameter store in %q", dbOpts.Dir)
	}
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close the store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Save the current values of vars, in one transaction.
func (s *Store) Save(vars ...*context.Variable) error {
	entries := make(map[string][]byte, len(vars))
	for _, v := range vars {
		value, err := v.Value()
		if err != nil {
			return errors.WithMessagef(err, "failed to read value of %s", v.ParameterName())
		}
		data, err := s.encode(value)
		if err != nil {
			return errors.WithMessagef(err, "failed to encode %s", v.ParameterName())
		}
		entries[v.ParameterName()] = data
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for key, data := range entries {
			if err := txn.Set([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to save variables")
	}
	klog.V(1).Infof("paramstore: saved %d variables", len(vars))
	return nil
}

// Restore the values of vars. Each must have been saved with the same shape.
//
// All values are read and checked before any variable is changed.
func (s *Store) Restore(vars ...*context.Variable) error {
	values := make([]*tensors.Tensor, len(vars))
	err := s.db.View(func(txn *badger.Txn) error {
		for i, v := range vars {
			item, err := txn.Get([]byte(v.ParameterName()))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return errors.Wrapf(ErrNotFound, "%s", v.ParameterName())
			}
			if err != nil {
				return err
			}
			err = item.Value(func(data []byte) error {
				t, err := decode(data)
				if err != nil {
					return err
				}
				if !t.Shape().Equal(v.Shape()) {
					return errors.Errorf("%s: stored shape %s doesn't match variable shape %s",
						v.ParameterName(), t.Shape(), v.Shape())
				}
				values[i] = t
				return nil
			})
			if err != nil {
				return errors.WithMessagef(err, "failed to read %s", v.ParameterName())
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i, v := range vars {
		if err := v.SetValue(values[i]); err != nil {
			return errors.WithMessagef(err, "failed to restore %s", v.ParameterName())
		}
	}
	klog.V(1).Infof("paramstore: restored %d variables", len(vars))
	return nil
}

// Keys returns the sorted parameter names of the saved variables.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	slices.Sort(keys)
	return keys, err
}

// Size returns the number of bytes stored for the variable with the given parameter name.
func (s *Store) Size(parameterName string) (int64, error) {
	var size int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(parameterName))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.Wrapf(ErrNotFound, "%s", parameterName)
		}
		if err != nil {
			return err
		}
		size = item.ValueSize()
		return nil
	})
	return size, err
}

// encode value as: header length (uint32, little-endian), JSON header, values (little-endian).
func (s *Store) encode(value *tensors.Tensor) ([]byte, error) {
	h := header{
		DType:      value.DType().String(),
		Dimensions: slices.Clone(value.Shape().Dimensions),
		Encoding:   EncodingRaw,
	}
	var payload []byte
	switch value.DType() {
	case dtypes.Float32:
		flat := tensors.MustCopyFlatData[float32](value)
		if s.halfPrecision {
			h.Encoding = EncodingFloat16
			payload = make([]byte, 0, 2*len(flat))
			for _, f := range flat {
				payload = binary.LittleEndian.AppendUint16(payload, float16.Fromfloat32(f).Bits())
			}
		} else {
			payload = make([]byte, 0, 4*len(flat))
			for _, f := range flat {
				payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(f))
			}
		}
	case dtypes.Float64:
		flat := tensors.MustCopyFlatData[float64](value)
		payload = make([]byte, 0, 8*len(flat))
		for _, f := range flat {
			payload = binary.LittleEndian.AppendUint64(payload, math.Float64bits(f))
		}
	default:
		return nil, errors.Errorf("dtype %s not supported, only Float32 and Float64", value.DType())
	}
	headerJSON, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	data := binary.LittleEndian.AppendUint32(nil, uint32(len(headerJSON)))
	data = append(data, headerJSON...)
	return append(data, payload...), nil
}

func decode(data []byte) (*tensors.Tensor, error) {
	if len(data) < 4 {
		return nil, errors.New("corrupted entry: too short")
	}
	headerLen := int(binary.LittleEndian.Uint32(data))
	if len(data) < 4+headerLen {
		return nil, errors.New("corrupted entry: truncated header")
	}
	var h header
	if err := json.Unmarshal(data[4:4+headerLen], &h); err != nil {
		return nil, errors.Wrap(err, "corrupted entry header")
	}
	payload := data[4+headerLen:]
	size := 1
	for _, dim := range h.Dimensions {
		size *= dim
	}

	switch {
	case h.DType == dtypes.Float32.String() && h.Encoding == EncodingFloat16:
		if len(payload) != 2*size {
			return nil, errors.Errorf("corrupted entry: %d bytes for %d float16 values", len(payload), size)
		}
		flat := make([]float32, size)
		for i := range flat {
			flat[i] = float16.Frombits(binary.LittleEndian.Uint16(payload[2*i:])).Float32()
		}
		return tensors.FromFlatDataAndDimensions(flat, h.Dimensions...), nil
	case h.DType == dtypes.Float32.String() && h.Encoding == EncodingRaw:
		if len(payload) != 4*size {
			return nil, errors.Errorf("corrupted entry: %d bytes for %d float32 values", len(payload), size)
		}
		flat := make([]float32, size)
		for i := range flat {
			flat[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[4*i:]))
		}
		return tensors.FromFlatDataAndDimensions(flat, h.Dimensions...), nil
	case h.DType == dtypes.Float64.String() && h.Encoding == EncodingRaw:
		if len(payload) != 8*size {
			return nil, errors.Errorf("corrupted entry: %d bytes for %d float64 values", len(payload), size)
		}
		flat := make([]float64, size)
		for i := range flat {
			flat[i] = math.Float64frombits(binary.LittleEndian.Uint64(payload[8*i:]))
		}
		return tensors.FromFlatDataAndDimensions(flat, h.Dimensions...), nil
	}
	return nil, errors.Errorf("unsupported entry dtype=%s, encoding=%s", h.DType, h.Encoding)
}

// klogLogger routes Badger's logging to klog.
type klogLogger struct{}

func (klogLogger) Errorf(format string, args ...any)   { klog.Errorf("badger: "+format, args...) }
func (klogLogger) Warningf(format string, args ...any) { klog.Warningf("badger: "+format, args...) }
func (klogLogger) Infof(format string, args ...any)    { klog.V(2).Infof("badger: "+format, args...) }
func (klogLogger) Debugf(format string, args ...any)   { klog.V(3).Infof("badger: "+format, args...) }
