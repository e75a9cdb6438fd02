package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pdf-translator/internal/config"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/python"
	"pdf-translator/internal/types"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

//go:embed all:frontend/dist
var assets embed.FS

// Command line flags
var (
	pdfFlag       = flag.String("pdf", "", "PDF file path to translate")
	outputDir     = flag.String("output", "", "Output directory for translated files (default: next to the input)")
	cliFlag       = flag.Bool("cli", false, "Run in CLI mode without GUI")
	downloadModel = flag.Bool("download-model", false, "Download the layout model and exit")
)

// printHelp displays the help information for command line usage.
func printHelp() {
	fmt.Println("PDF Translator - 翻译 PDF 文档并生成双语与译文 PDF")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  pdf-translator [选项]")
	fmt.Println()
	fmt.Println("选项:")
	fmt.Println("  --pdf <PATH>       PDF 文件路径")
	fmt.Println("  --output <PATH>    输出目录 (默认为输入文件所在目录)")
	fmt.Println("  --cli              命令行模式运行 (不启动 GUI)")
	fmt.Println("  --download-model   下载版面分析模型后退出")
	fmt.Println("  -h, --help         显示帮助信息")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  pdf-translator                                   # 启动 GUI 界面")
	fmt.Println("  pdf-translator --pdf /path/to/paper.pdf --cli")
	fmt.Println("  pdf-translator --pdf paper.pdf --output out --cli")
	fmt.Println("  pdf-translator --download-model")
	fmt.Println()
	fmt.Println("环境变量 (也可写入程序目录或用户数据目录下的 .env):")
	fmt.Printf("  %-26s 指定 Python 解释器\n", config.EnvPython)
	fmt.Printf("  %-26s dev 或 packaged\n", config.EnvMode)
	fmt.Printf("  %-26s 资源目录 (python_env, main.py, models)\n", config.EnvResources)
	fmt.Printf("  %-26s 转换超时, 如 30m\n", config.EnvWorkerTimeout)
	fmt.Printf("  %-26s 模型下载镜像 (默认 %s)\n", config.EnvHFEndpoint, config.DefaultMirror)
	fmt.Printf("  %-26s onnxruntime 动态库路径\n", config.EnvOnnxRuntime)
}

// userDataDir returns ~/.PDFTranslator, falling back to the working
// directory when there is no home.
func userDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, python.AppDataDirName)
	}
	return python.AppDataDirName
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}

// initLogger writes to <userData>/logs and mirrors to the console in CLI mode.
func initLogger(dataDir string, launcher config.Launcher, console bool) {
	cfg := logger.DefaultConfig()
	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err == nil {
		cfg.LogFilePath = filepath.Join(logDir, "pdf-translator.log")
	} else {
		cfg.LogFilePath = ""
	}
	cfg.EnableConsole = console
	if level, ok := logger.ParseLevel(launcher.LogLevel); ok {
		cfg.Level = level
	}
	if err := logger.Init(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "警告: 无法初始化日志: %v\n", err)
	}
}

func main() {
	// Custom usage function for help
	flag.Usage = printHelp
	flag.Parse()

	dataDir := userDataDir()
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "错误: 无法创建用户数据目录 %s: %v\n", dataDir, err)
		os.Exit(1)
	}

	headless := *cliFlag || *downloadModel
	// .env files are read before the logger exists so they can set its level
	launcher := config.LoadLauncher(executableDir(), dataDir)
	initLogger(dataDir, launcher, headless)
	defer logger.Close()

	logger.Info("launcher settings",
		logger.String("mode", launcher.Mode),
		logger.String("python", launcher.PythonPath),
		logger.String("resources", launcher.ResourcesDir),
		logger.Duration("worker_timeout", launcher.WorkerTimeout),
		logger.Any("env_files", launcher.Sources))

	app := NewApp(dataDir, launcher)

	if *downloadModel {
		code := runDownloadCLI(app)
		logger.Close()
		os.Exit(code)
	}
	if *cliFlag {
		if *pdfFlag == "" {
			fmt.Fprintln(os.Stderr, "错误: CLI 模式需要 --pdf 参数")
			fmt.Println()
			printHelp()
			os.Exit(1)
		}
		code := runConversionCLI(app, *pdfFlag, *outputDir)
		logger.Close()
		os.Exit(code)
	}

	app.SetWailsRuntime(true)

	err := wails.Run(&options.App{
		Title:  "PDF 翻译",
		Width:  1024,
		Height: 768,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		OnBeforeClose: func(ctx context.Context) (prevent bool) {
			if !app.IsBusy(string(types.SessionConversion)) && !app.IsBusy(string(types.SessionDownload)) {
				return false
			}
			result, err := runtime.MessageDialog(ctx, runtime.MessageDialogOptions{
				Type:          runtime.QuestionDialog,
				Title:         "确认退出",
				Message:       "任务正在进行中，确定要退出吗？\n退出后当前任务将被取消。",
				Buttons:       []string{"取消", "退出"},
				DefaultButton: "取消",
				CancelButton:  "取消",
			})
			if err != nil {
				return false
			}
			return result == "取消"
		},
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		logger.Error("wails run failed", err)
		logger.Close()
		os.Exit(1)
	}
}

// runConversionCLI converts one PDF without a window and returns the exit
// status.
func runConversionCLI(app *App, input, outDir string) int {
	fmt.Println("=== PDF 翻译 (CLI 模式) ===")
	fmt.Printf("输入文件: %s\n", input)

	app.startup(context.Background())
	app.SetPrinter(newConsolePrinter(os.Stdout, os.Stderr))

	if info := app.InspectPDF(input); info.Failure == nil {
		fmt.Printf("PDF 信息: %d 页\n", info.Info.PageCount)
		if !info.Info.HasTextLayer {
			fmt.Println("警告: 未检测到文本层, 扫描版 PDF 可能无法翻译")
		}
	}

	res := app.StartConversion(input, outDir)
	app.shutdown(context.Background())

	if res.Failure != nil {
		fmt.Fprintf(os.Stderr, "\n错误: 翻译失败: %s\n", res.Failure.Error())
		return 1
	}

	fmt.Println()
	fmt.Println("=== 翻译完成 ===")
	if res.Dual != "" {
		fmt.Printf("双语 PDF: %s\n", res.Dual)
	}
	if res.Mono != "" {
		fmt.Printf("译文 PDF: %s\n", res.Mono)
	}
	fmt.Printf("耗时: %s\n", res.Process.Duration.Round(time.Second))
	return 0
}

// runDownloadCLI fetches the layout model and returns the exit status.
func runDownloadCLI(app *App) int {
	app.startup(context.Background())
	app.SetPrinter(newConsolePrinter(os.Stdout, os.Stderr))

	if status := app.GetModelStatus(); status.Status.State == types.ModelPresent {
		fmt.Printf("模型已存在: %s\n", status.Status.Dir)
		return 0
	}

	fmt.Println("正在下载版面分析模型...")
	res := app.DownloadModel()
	app.shutdown(context.Background())
	if res.Failure != nil {
		fmt.Fprintf(os.Stderr, "\n错误: 模型下载失败: %s\n", res.Failure.Error())
		return 1
	}
	fmt.Println("模型下载完成")
	return 0
}
