package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"

	applog "talkdoc/internal/platform/log"
)

// DefaultLanguage 检测失败或文本过短时使用
const DefaultLanguage = "en"

// minDetectRunes 少于该长度的文本不做检测
const minDetectRunes = 10

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"nl": "Dutch",
	"ru": "Russian",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"ar": "Arabic",
	"hi": "Hindi",
	"bn": "Bengali",
	"ur": "Urdu",
	"te": "Telugu",
	"ta": "Tamil",
	"mr": "Marathi",
	"gu": "Gujarati",
}

// LanguageName 语言代码 -> 英文名称
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%s)", code)
}

// NormalizeLanguage 规范化语言代码："zh-CN" -> "zh"，空值 -> ""
func NormalizeLanguage(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if base, _, ok := strings.Cut(code, "-"); ok {
		code = base
	}
	if base, _, ok := strings.Cut(code, "_"); ok {
		code = base
	}
	return code
}

// LanguageDetector 文本语言识别
type LanguageDetector interface {
	// Detect 返回 ISO 639-1 代码与语言名
	Detect(text string) (code, name string)
}

// WhatlangDetector 基于 whatlanggo 的 trigram 识别
type WhatlangDetector struct {
	// MinConfidence 低于该置信度视为不可靠，返回 DefaultLanguage
	MinConfidence float64
}

// NewWhatlangDetector 创建识别器
func NewWhatlangDetector() *WhatlangDetector {
	return &WhatlangDetector{MinConfidence: 0.5}
}

func (d *WhatlangDetector) Detect(text string) (string, string) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minDetectRunes {
		return DefaultLanguage, LanguageName(DefaultLanguage)
	}

	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" || info.Confidence < d.MinConfidence {
		applog.Debug("[RAG/Language] Detection unreliable, using default",
			"detected", info.Lang.String(),
			"confidence", info.Confidence,
		)
		return DefaultLanguage, LanguageName(DefaultLanguage)
	}
	return code, LanguageName(code)
}

// DetectSample 只取前 sampleSize 个 rune 做检测
func DetectSample(d LanguageDetector, text string, sampleSize int) (string, string) {
	return d.Detect(truncateRunes(text, sampleSize))
}
