// Command runtime_check shows which python runtime the app would use and
// whether it starts. It prints every candidate, the worker environment and
// the output of "<python> --version".
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"pdf-translator/internal/config"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/python"
	"pdf-translator/internal/supervisor"
	"pdf-translator/internal/types"
)

func main() {
	mode := flag.String("mode", "", "dev or packaged (default: auto)")
	resources := flag.String("resources", "", "resources directory")
	verbose := flag.Bool("v", false, "log to the console")
	logFile := flag.String("log", "", "also write the debug log to this file")
	flag.Parse()

	if err := initLogger(*verbose, *logFile); err != nil {
		fmt.Fprintf(os.Stderr, "警告: 无法初始化日志: %v\n", err)
	}
	defer logger.Close()

	fmt.Println("=== Python 运行时检查 ===")
	fmt.Println()

	home, _ := os.UserHomeDir()
	launcher := config.LoadLauncher(filepath.Dir(os.Args[0]), filepath.Join(home, python.AppDataDirName))
	if *mode != "" {
		launcher.Mode = *mode
	}
	if *resources != "" {
		launcher.ResourcesDir = *resources
	}
	for _, src := range launcher.Sources {
		fmt.Printf("读取 .env: %s\n", src)
	}

	target := python.DetectTarget(launcher.Mode, launcher.ResourcesDir, launcher.PythonPath)
	fmt.Println("1. 目标:")
	fmt.Printf("   Mode:      %s\n", target.Mode)
	fmt.Printf("   Platform:  %s/%s\n", target.GOOS, target.GOARCH)
	fmt.Printf("   Resources: %s\n", target.ResourcesDir)
	fmt.Printf("   App Data:  %s\n", target.AppDataDir)
	fmt.Println()

	fmt.Println("2. 候选路径:")
	for i, c := range python.Candidates(target) {
		fmt.Printf("   %d. [%s] %s\n", i+1, c.Source, c)
	}
	fmt.Println()

	runtime, err := python.NewLocator(target).Locate()
	if err != nil {
		f := python.FailureOf(err)
		fmt.Printf("错误: %s\n", f.Error())
		os.Exit(1)
	}
	fmt.Printf("3. 选中: %s (%s)\n", runtime.Path, runtime.Source)
	fmt.Println()

	env := python.Environment(runtime, os.Environ(), launcher.HFEndpoint)
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Println("4. 工作进程环境:")
	for _, k := range keys {
		fmt.Printf("   %s=%s\n", k, env[k])
	}
	fmt.Println()

	fmt.Println("5. 启动测试...")
	sup := supervisor.New(supervisor.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	result := sup.Execute(ctx, types.WorkerInvocation{
		Session:        types.SessionConversion,
		ExecutablePath: runtime.Path,
		Args:           []string{"-c", "import sys; print(f'Python {sys.version}'); print(sys.executable)"},
		Env:            env,
	}, func(_ string, stream types.Stream, line string) {
		fmt.Printf("   [%s] %s\n", stream, line)
	})
	if result.Failure != nil {
		fmt.Printf("错误: %s\n", result.Failure.Error())
		os.Exit(1)
	}
	fmt.Println()
	fmt.Println("=== 检查通过 ===")
}

// initLogger enables debug logging when either output is requested.
func initLogger(console bool, path string) error {
	if !console && path == "" {
		return nil
	}
	return logger.Init(&logger.Config{
		Level:         logger.LevelDebug,
		EnableConsole: console,
		LogFilePath:   path,
	})
}
