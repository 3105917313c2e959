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

package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/daviszhen/exechash/pkg/common"
	"github.com/daviszhen/exechash/pkg/compute"
	"github.com/daviszhen/exechash/pkg/util"
)

var benchCfg = &util.Config{}

var defCfgFilePaths = []string{".", "etc"}
var cfgFileName = "bench.toml"

func init() {
	cobra.OnInitialize(loadConfig)
	initAggCmd()
	initJoinCmd()
}

func initAggCmd() {
	RootCmd.AddCommand(aggCmd)
	aggCmd.Flags().Int("rows", 0, "input row count")
	aggCmd.Flags().Int("groups", 0, "distinct group count")
	aggCmd.Flags().Int("partitions", 0, "parallel partition count")
	aggCmd.Flags().Bool("print_plan", false, "print the compiled entry layout")

	viper.BindPFlag("bench.rows", aggCmd.Flags().Lookup("rows"))
	viper.BindPFlag("bench.groups", aggCmd.Flags().Lookup("groups"))
	viper.BindPFlag("bench.partitions", aggCmd.Flags().Lookup("partitions"))
	viper.BindPFlag("bench.printPlan", aggCmd.Flags().Lookup("print_plan"))
}

func initJoinCmd() {
	RootCmd.AddCommand(joinCmd)
	joinCmd.Flags().Int("build_rows", 0, "build side row count")
	joinCmd.Flags().Int("probe_rows", 0, "probe side row count")
	joinCmd.Flags().Int("groups", 0, "distinct key count on the build side")
	joinCmd.Flags().Bool("print_plan", false, "print the compiled entry layout")

	viper.BindPFlag("bench.buildRows", joinCmd.Flags().Lookup("build_rows"))
	viper.BindPFlag("bench.probeRows", joinCmd.Flags().Lookup("probe_rows"))
	viper.BindPFlag("bench.groups", joinCmd.Flags().Lookup("groups"))
	viper.BindPFlag("bench.printPlan", joinCmd.Flags().Lookup("print_plan"))
}

func loadConfig() {
	for _, dirPath := range defCfgFilePaths {
		fpath := filepath.Join(dirPath, cfgFileName)
		if util.FileIsValid(fpath) {
			_, err := toml.DecodeFile(fpath, benchCfg)
			if err != nil {
				util.Error("load config file failed",
					zap.String("fpath", fpath),
					zap.Error(err))
				continue
			}
			break
		}
	}
	initBenchOptions()
	benchCfg.FillDefault()
}

func initBenchOptions() {
	if viper.IsSet("bench.rows") {
		benchCfg.Bench.Rows = viper.GetInt("bench.rows")
	}
	if viper.IsSet("bench.groups") {
		benchCfg.Bench.Groups = viper.GetInt("bench.groups")
	}
	if viper.IsSet("bench.buildRows") {
		benchCfg.Bench.BuildRows = viper.GetInt("bench.buildRows")
	}
	if viper.IsSet("bench.probeRows") {
		benchCfg.Bench.ProbeRows = viper.GetInt("bench.probeRows")
	}
	if viper.IsSet("bench.partitions") {
		benchCfg.Bench.Partitions = viper.GetInt("bench.partitions")
	}
	if viper.IsSet("bench.printPlan") {
		benchCfg.Bench.PrintPlan = viper.GetBool("bench.printPlan")
	}
}

var info = "bench"
var RootCmd = &cobra.Command{
	Use:          "bench",
	Short:        info,
	Long:         info,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("use bench --help or -h")
	},
}

var aggInfo = "run grouped aggregation over generated rows"
var aggCmd = &cobra.Command{
	Use:   "agg",
	Short: aggInfo,
	Long:  aggInfo,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgg()
	},
}

var joinInfo = "run inner hash join over generated rows"
var joinCmd = &cobra.Command{
	Use:   "join",
	Short: joinInfo,
	Long:  joinInfo,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJoin()
	},
}

// newBudget gives every partition its own budget slice, or nil for unlimited.
func newBudget(opts *util.HashTableOptions) func() compute.MemoryBudget {
	if opts.BudgetBytes <= 0 {
		return nil
	}
	return func() compute.MemoryBudget {
		return compute.NewFixedBudget(opts.BudgetBytes)
	}
}

func genRows(cnt, groups int, seed int64) []*compute.Row {
	rnd := rand.New(rand.NewSource(seed))
	rows := make([]*compute.Row, cnt)
	for i := 0; i < cnt; i++ {
		key := int64(rnd.Intn(groups))
		rows[i] = compute.NewRow(
			[]compute.Value{compute.NewBigintValue(key)},
			[]compute.Value{compute.NewDoubleValue(rnd.Float64())},
		)
	}
	return rows
}

func splitRows(rows []*compute.Row, parts int) [][]*compute.Row {
	res := make([][]*compute.Row, parts)
	for i, row := range rows {
		res[i%parts] = append(res[i%parts], row)
	}
	return res
}

func runAgg() error {
	opts := &benchCfg.HashTable
	bopts := &benchCfg.Bench
	keyDefs := []compute.FieldDef{
		{Typ: common.BigintType(), Expr: "k"},
	}
	argDefs := []compute.FieldDef{
		{Typ: common.DoubleType(), Nullable: true, Expr: "v"},
	}
	specs := []compute.AggrSpec{
		{Kind: compute.AggrCount, ArgIdx: -1},
		{Kind: compute.AggrSum, ArgIdx: 0},
	}
	cache := compute.NewLayoutCache()
	if bopts.PrintPlan {
		stateDefs := []compute.FieldDef{
			{Typ: common.BigintType()},
			{Typ: common.DoubleType(), Nullable: true},
		}
		fmt.Println(cache.Get(keyDefs, stateDefs, false).Explain())
	}

	rows := genRows(bopts.Rows, bopts.Groups, 0x5eed)
	parts := splitRows(rows, bopts.Partitions)

	start := time.Now()
	execs, err := compute.BuildAggrPartitions(
		context.Background(),
		cache, keyDefs, specs, argDefs,
		parts, opts, newBudget(opts))
	if err != nil {
		return err
	}
	groups, spills := 0, 0
	for _, exec := range execs {
		groups += exec.Count()
		spills += exec.Spills()
	}
	util.Info("aggregation done",
		zap.Int("rows", bopts.Rows),
		zap.Int("partitions", bopts.Partitions),
		zap.Int("groups", groups),
		zap.Int("spills", spills),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func runJoin() error {
	opts := &benchCfg.HashTable
	bopts := &benchCfg.Bench
	keyDefs := []compute.FieldDef{
		{Typ: common.BigintType(), Expr: "k"},
	}
	valDefs := []compute.FieldDef{
		{Typ: common.DoubleType(), Nullable: true, Expr: "payload"},
	}
	cache := compute.NewLayoutCache()
	layout := cache.Get(keyDefs, valDefs, true)
	if bopts.PrintPlan {
		fmt.Println(layout.Explain())
	}

	build := genRows(bopts.BuildRows, bopts.Groups, 0xb111d)
	probe := genRows(bopts.ProbeRows, bopts.Groups*2, 0x9a0be)

	start := time.Now()
	ht := compute.NewHashTable(layout, opts, nil)
	skipped := compute.BuildJoin(ht, build)
	buildDur := time.Since(start)

	scan := compute.NewJoinScan(ht, compute.JoinInner, nil)
	sink := &compute.RowBuffer{}
	start = time.Now()
	err := scan.ProbeBatch(context.Background(), probe, sink)
	if err != nil {
		return err
	}
	util.Info("join done",
		zap.Int("buildRows", bopts.BuildRows),
		zap.Int("probeRows", bopts.ProbeRows),
		zap.Int("skippedNullKeys", skipped),
		zap.Int("outputRows", sink.Len()),
		zap.Bool("keysUnique", ht.KeysUnique()),
		zap.Duration("buildElapsed", buildDur),
		zap.Duration("probeElapsed", time.Since(start)))
	return nil
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		util.Error("bench failed", zap.Error(err))
		os.Exit(1)
	}
}
