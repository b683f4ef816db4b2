// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides undofs's standard CBOR encoding configuration.
//
// undofs writes one on-disk CBOR document, the mount manifest, and
// this package gives it a deterministic, reusable encode/decode mode
// rather than reaching for fxamacker/cbor's defaults ad hoc:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
package codec
