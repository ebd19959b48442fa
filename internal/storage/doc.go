/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage is the local workspace cache: an embedded SQLite file at
// <cache dir>/workspace.sqlite holding recent authoritative snapshots.
// The remote authority stays the source of truth; the cache only lets the
// editor show the last known scene before the first push arrives, and it is
// disposable. A corrupt file is backed up and recreated.
package storage
