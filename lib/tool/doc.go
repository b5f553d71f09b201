// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package tool defines the tool catalog an agent executes against: a
// [Definition] describing a tool to the model, a [Handler] executing
// it, and a [Registry] holding both.
//
// The engine depends only on this package, never on where tools come
// from — built-in tools, application-registered handlers, and
// external protocol clients all register through the same Registry.
// This keeps the execution loop independent of any particular tool
// transport.
//
// A lookup miss is reported as [ErrNotFound] and is deliberately
// fatal to a run: the model was told the tool exists, so fabricating
// a result would poison the conversation.
package tool
