// Copyright 2024-2025 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package util

type HashTableOptions struct {
	InitCap       int `tag:"initCap"`
	LoadFactorNum int `tag:"loadFactorNum"`
	LoadFactorDen int `tag:"loadFactorDen"`
	DictSizeCap   int `tag:"dictSizeCap"`
	//0 means unlimited
	BudgetBytes int `tag:"budgetBytes"`
}

type BenchOptions struct {
	Rows       int  `tag:"rows"`
	Groups     int  `tag:"groups"`
	BuildRows  int  `tag:"buildRows"`
	ProbeRows  int  `tag:"probeRows"`
	Partitions int  `tag:"partitions"`
	PrintPlan  bool `tag:"printPlan"`
}

type Config struct {
	HashTable HashTableOptions `tag:"hashTable"`
	Bench     BenchOptions     `tag:"bench"`
}

// FillDefault keeps zero-valued tunables usable when no config file is given.
func (cfg *Config) FillDefault() {
	if cfg.HashTable.InitCap <= 0 {
		cfg.HashTable.InitCap = 1024
	}
	if cfg.HashTable.LoadFactorNum <= 0 ||
		cfg.HashTable.LoadFactorDen <= 0 ||
		cfg.HashTable.LoadFactorNum >= cfg.HashTable.LoadFactorDen {
		cfg.HashTable.LoadFactorNum = 2
		cfg.HashTable.LoadFactorDen = 3
	}
	if cfg.HashTable.DictSizeCap <= 0 {
		cfg.HashTable.DictSizeCap = 1 << 20
	}
	if cfg.Bench.Rows <= 0 {
		cfg.Bench.Rows = 1 << 20
	}
	if cfg.Bench.Groups <= 0 {
		cfg.Bench.Groups = 1 << 10
	}
	if cfg.Bench.BuildRows <= 0 {
		cfg.Bench.BuildRows = 1 << 18
	}
	if cfg.Bench.ProbeRows <= 0 {
		cfg.Bench.ProbeRows = 1 << 20
	}
	if cfg.Bench.Partitions <= 0 {
		cfg.Bench.Partitions = 4
	}
}
