// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
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

package serializers

// Serializer writes a result value to an output in some format.
type Serializer interface {
	Serialize(v any) error
}

// Tabular lets a result type control its own table rendering: one row per
// logical record instead of the generic field/value flattening.
type Tabular interface {
	TableHeader() []string
	TableRows() [][]string
}
