// Copyright 2025 Tom Barlow
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

// Package runner implements the harness's supervisor loop: a state
// machine that drives a Mode Runner's steps to completion, wrapping
// each step with the Error Handler's retry policy and interpreting the
// result through the Condition Detector. It owns RunnerState exclusively
// and checkpoints it through the State Manager on every transition.
package runner
