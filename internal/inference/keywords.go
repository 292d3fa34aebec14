// Copyright (c) 2026 John Earle
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

package inference

import "strings"

// keywordSeparator is the list format requested from the model.
const keywordSeparator = ", "

// SplitKeywords splits a comma-separated model response into keywords.
// Order, duplicates and casing are preserved; surrounding whitespace and
// empty entries are dropped. No further format validation is attempted.
func SplitKeywords(resp string) []string {
	keywords := []string{}
	for _, kw := range strings.Split(strings.TrimSpace(resp), keywordSeparator) {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}
