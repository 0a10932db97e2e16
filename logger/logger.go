package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel 日志级别
type LogLevel int

const (
	DEBUG LogLevel = iota // 调试信息（最详细）
	INFO                  // 一般信息（正常运行信息）
	WARN                  // 警告信息（需要注意但不影响运行）
	ERROR                 // 错误信息（需要关注的问题）
	FATAL                 // 致命错误（程序无法继续）
)

var (
	globalLevel LogLevel = INFO
	mu          sync.RWMutex

	logDir = "logs" // 日志文件夹

	// 应用日志与 Web 访问日志分开存放
	appFile = &rotatingFile{prefix: "app-paperarena"}
	webFile = &rotatingFile{prefix: "web-gin"}

	// 时区相关
	globalLocation *time.Location = time.Local
	locationMu     sync.RWMutex

	// i18n 翻译函数（由 main 注入，避免循环依赖）
	translateFunc func(key string, data ...interface{}) string
	translateMu   sync.RWMutex
)

// rotatingFile 按日期轮转的日志文件
type rotatingFile struct {
	mu      sync.Mutex
	prefix  string
	file    *os.File
	logger  *log.Logger
	date    string
	enabled bool
}

// open 打开（或轮转到）当天的日志文件
// 注意：调用前必须已持有 rf.mu
func (rf *rotatingFile) open(today string) error {
	if rf.logger != nil && rf.date == today {
		return nil
	}
	if rf.file != nil {
		rf.file.Close()
		rf.file = nil
		rf.logger = nil
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("创建日志文件夹失败: %v", err)
	}
	name := filepath.Join(logDir, fmt.Sprintf("%s-%s.log", rf.prefix, today))
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("打开日志文件失败: %v", err)
	}
	rf.file = file
	rf.date = today
	// 文件日志自带时间戳，这里不再添加前缀
	rf.logger = log.New(file, "", 0)
	return nil
}

// write 写入一行日志（包含时间戳），必要时先轮转
func (rf *rotatingFile) write(message string) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if !rf.enabled {
		return
	}

	locationMu.RLock()
	loc := globalLocation
	locationMu.RUnlock()

	now := time.Now().In(loc)
	if err := rf.open(now.Format("2006-01-02")); err != nil {
		return
	}
	rf.logger.Printf("%s %s", now.Format("2006/01/02 15:04:05"), message)
}

// close 关闭日志文件
func (rf *rotatingFile) close() {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file != nil {
		rf.file.Close()
		rf.file = nil
		rf.logger = nil
		rf.date = ""
	}
	rf.enabled = false
}

// String 返回日志级别的字符串表示
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel 解析日志级别字符串
func ParseLogLevel(level string) LogLevel {
	level = strings.ToUpper(strings.TrimSpace(level))
	switch level {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO // 默认INFO级别
	}
}

// SetLevel 设置全局日志级别
// DEBUG 级别下同时启用应用日志文件
func SetLevel(level LogLevel) {
	mu.Lock()
	globalLevel = level
	mu.Unlock()

	if level == DEBUG {
		appFile.mu.Lock()
		appFile.enabled = true
		appFile.mu.Unlock()
	} else {
		appFile.close()
	}
}

// GetLevel 获取全局日志级别
func GetLevel() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return globalLevel
}

// SetLocation 设置全局日志时区
func SetLocation(loc *time.Location) {
	locationMu.Lock()
	defer locationMu.Unlock()
	globalLocation = loc
}

// SetTranslateFunc 设置翻译函数（由 main 包调用，避免循环依赖）
func SetTranslateFunc(fn func(key string, data ...interface{}) string) {
	translateMu.Lock()
	defer translateMu.Unlock()
	translateFunc = fn
}

// translate 翻译消息（如果翻译函数未设置或翻译失败，返回原始消息）
func translate(message string) string {
	translateMu.RLock()
	fn := translateFunc
	translateMu.RUnlock()

	if fn == nil {
		return message
	}
	translated := fn(message)
	if translated == "" || translated == message {
		return message
	}
	return translated
}

// InitWebLogger 启用 Web 访问日志文件
func InitWebLogger() error {
	webFile.mu.Lock()
	webFile.enabled = true
	webFile.mu.Unlock()
	return nil
}

// WriteWebLog 写入 Web 日志（供 Gin 中间件使用）
func WriteWebLog(message string) {
	webFile.write(message)
}

// Close 关闭文件日志（程序退出时调用）
func Close() {
	appFile.close()
	webFile.close()
}

// shouldLog 判断是否应该输出日志
func shouldLog(level LogLevel) bool {
	mu.RLock()
	defer mu.RUnlock()
	return level >= globalLevel
}

// logf 内部日志输出函数
func logf(level LogLevel, format string, args ...interface{}) {
	if !shouldLog(level) {
		return
	}
	prefix := fmt.Sprintf("[%s] ", level.String())
	message := translate(fmt.Sprintf(format, args...))

	// 输出到控制台（标准输出）
	log.Print(prefix + message)

	// DEBUG 级别同时写入文件
	appFile.write(prefix + message)
}

// Debug 输出调试日志
func Debug(format string, args ...interface{}) {
	logf(DEBUG, format, args...)
}

// Info 输出一般信息日志
func Info(format string, args ...interface{}) {
	logf(INFO, format, args...)
}

// Warn 输出警告日志
func Warn(format string, args ...interface{}) {
	logf(WARN, format, args...)
}

// Error 输出错误日志
func Error(format string, args ...interface{}) {
	logf(ERROR, format, args...)
}

// Fatal 输出致命错误日志并退出程序
func Fatal(format string, args ...interface{}) {
	logf(FATAL, format, args...)
	os.Exit(1)
}

// Fatalf 输出致命错误日志并退出程序（兼容标准库）
func Fatalf(format string, args ...interface{}) {
	Fatal(format, args...)
}
