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

package proxyengine

import "net/http"

// Kind names one of the pipeline failure taxonomies of spec.md §7. It is
// not meant to be inspected by callers outside this package; HTTPStatus is
// the public surface.
type Kind int

const (
	// KindNoRule: no pattern matched the request path.
	KindNoRule Kind = iota
	// KindContentFetchError: a file/remote fetch or upstream non-2xx.
	KindContentFetchError
	// KindUpstreamUnavailable: the rule's target URL list is empty.
	KindUpstreamUnavailable
	// KindUpstreamTransportError: outbound send/read/response failed.
	KindUpstreamTransportError
	// KindUnsupportedMethod: method outside {GET,POST,PUT,DELETE,PATCH,HEAD}.
	KindUnsupportedMethod
	// KindBodyTooLarge: request body exceeded maxBodyBytes.
	KindBodyTooLarge
)

// pipelineError is the single hard-error type the pipeline returns; it
// carries enough context (rule name, path/URL) for the structured log
// event spec.md §7 requires.
type pipelineError struct {
	kind Kind
	msg  string
	rule string
	path string
}

func (e *pipelineError) Error() string { return e.msg }

// HTTPStatus maps a Kind to the status code spec.md §7 assigns it.
func (e *pipelineError) HTTPStatus() int {
	switch e.kind {
	case KindNoRule:
		return http.StatusNotFound
	case KindContentFetchError:
		return http.StatusInternalServerError
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstreamTransportError:
		return http.StatusBadGateway
	case KindUnsupportedMethod:
		return http.StatusBadGateway
	case KindBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, rule, path, msg string) *pipelineError {
	return &pipelineError{kind: kind, msg: msg, rule: rule, path: path}
}
