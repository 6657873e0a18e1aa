// Copyright 2015 Matthew Holt and The Caddy Authors
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

// Package httpheaders validates header name/value pairs the same way the
// standard net/http transport does, so a rejected replacement here is
// exactly the set of replacements the Go HTTP stack would also reject.
package httpheaders

import "golang.org/x/net/http/httpguts"

// Valid reports whether name and value are usable as an HTTP header: valid
// token syntax for the name, valid field-value syntax for the value.
func Valid(name, value string) bool {
	return httpguts.ValidHeaderFieldName(name) && httpguts.ValidHeaderFieldValue(value)
}
