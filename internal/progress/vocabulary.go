package progress

// DefaultStages covers the phrases printed by the conversion worker, in
// English and in the Chinese the bundled main.py uses.
var DefaultStages = []StageMarker{
	{Phrase: "starting conversion", Anchor: 5},
	{Phrase: "input file:", Anchor: 8},
	{Phrase: "config loaded", Anchor: 10},
	{Phrase: "using translation service:", Anchor: 15},
	{Phrase: "file size:", Anchor: 18},
	{Phrase: "reading pdf", Anchor: 20},
	{Phrase: "parsing content", Anchor: 40},
	{Phrase: "translating", Anchor: 60},
	{Phrase: "no failures detected", Anchor: 95},
	{Phrase: "translation complete", Anchor: 100},

	{Phrase: "开始执行转换", Anchor: 5},
	{Phrase: "输入文件", Anchor: 8},
	{Phrase: "成功读取配置", Anchor: 10},
	{Phrase: "使用翻译服务", Anchor: 15},
	{Phrase: "PDF文件大小", Anchor: 18},
	{Phrase: "正在读取 PDF", Anchor: 20},
	{Phrase: "正在解析内容", Anchor: 40},
	{Phrase: "正在翻译", Anchor: 60},
	{Phrase: "翻译完成", Anchor: 95},
	{Phrase: "转换成功", Anchor: 100},
}

// DefaultInformational lists progress chatter that may contain words like
// "error" but is never a failure.
var DefaultInformational = []string{
	"translation parameters",
	"output file:",
	"generated file size",
	"ignore errors",
	"翻译参数",
	"使用服务",
	"生成文件大小",
	"输出文件",
}

// DefaultErrorMarkers are matched case-insensitively.
var DefaultErrorMarkers = []string{
	"error",
	"failed",
	"traceback",
	"错误",
	"失败",
}

// DefaultPercentLabels let bare percentages from download scripts count as
// progress.
var DefaultPercentLabels = []string{
	"progress",
	"下载进度",
}

// New returns a classifier with the default vocabularies and no band.
func New() *Classifier {
	return &Classifier{
		Stages:        DefaultStages,
		Informational: DefaultInformational,
		ErrorMarkers:  DefaultErrorMarkers,
		PercentLabels: DefaultPercentLabels,
	}
}

// ConversionBand places the worker's per-page translation loop between the
// "translating" and "translation complete" anchors.
var ConversionBand = Band{From: 60, To: 95}

// ForConversion returns the classifier used for conversion sessions.
func ForConversion() *Classifier {
	c := New()
	b := ConversionBand
	c.Band = &b
	return c
}

// ForDownload returns the classifier used for model downloads, where the
// worker's own percentage is the overall progress.
func ForDownload() *Classifier {
	return New()
}
