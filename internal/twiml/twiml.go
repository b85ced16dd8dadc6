// Package twiml строит voice-control документы — упорядоченные
// последовательности директив, которые оператор связи исполняет
// на живом звонке. Wire-формат совместим с разметкой Twilio.
package twiml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// xmlHeader — заголовок документа, ожидаемый оператором.
const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

// ContentType — MIME-тип voice-control документа.
const ContentType = "text/xml"

// Say — произнести текст синтезированным голосом.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Loop     int      `xml:"loop,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Play — проиграть аудиофайл по URL.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

// Pause — пауза в секундах.
type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

// Gather — собрать нажатые цифры или речь и отправить их
// POST'ом на Action.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr,omitempty"` // "dtmf", "speech"
	Action        string   `xml:"action,attr,omitempty"`
	Method        string   `xml:"method,attr,omitempty"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	NumDigits     int      `xml:"numDigits,attr,omitempty"`
	Language      string   `xml:"language,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`

	// Say — вложенная реплика, произносимая во время сбора ввода.
	Say *Say `xml:",omitempty"`
}

// Redirect — продолжить звонок по документу с другого URL.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Dial — соединить звонок с другим номером.
type Dial struct {
	XMLName  xml.Name `xml:"Dial"`
	CallerID string   `xml:"callerId,attr,omitempty"`
	Number   string   `xml:"Number,omitempty"`
}

// Hangup — завершить звонок.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Response — корневой документ: упорядоченный список директив.
type Response struct {
	verbs []any
}

// New создаёт пустой документ.
func New() *Response {
	return &Response{}
}

// Append добавляет произвольную директиву в конец документа.
func (r *Response) Append(verb any) *Response {
	r.verbs = append(r.verbs, verb)
	return r
}

// Say добавляет реплику с настройками голоса.
func (r *Response) Say(text, voice, language string) *Response {
	return r.Append(Say{Text: text, Voice: voice, Language: language, Loop: 1})
}

// Pause добавляет паузу в секундах.
func (r *Response) Pause(seconds int) *Response {
	return r.Append(Pause{Length: seconds})
}

// Play добавляет проигрывание аудио.
func (r *Response) Play(url string) *Response {
	return r.Append(Play{URL: url})
}

// Redirect добавляет переход на другой URL (метод POST).
func (r *Response) Redirect(url string) *Response {
	return r.Append(Redirect{URL: url, Method: "POST"})
}

// Gather добавляет сбор ввода.
func (r *Response) Gather(g Gather) *Response {
	return r.Append(g)
}

// Dial добавляет соединение с номером.
func (r *Response) Dial(number, callerID string) *Response {
	return r.Append(Dial{Number: number, CallerID: callerID})
}

// Hangup добавляет завершение звонка.
func (r *Response) Hangup() *Response {
	return r.Append(Hangup{})
}

// Verbs возвращает директивы документа по порядку.
func (r *Response) Verbs() []any {
	return r.verbs
}

// Render сериализует документ в XML, принимаемый оператором.
func (r *Response) Render() (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)

	enc := xml.NewEncoder(&buf)
	root := xml.StartElement{Name: xml.Name{Local: "Response"}}
	if err := enc.EncodeToken(root); err != nil {
		return "", fmt.Errorf("encode response start: %w", err)
	}

	for _, verb := range r.verbs {
		if err := enc.Encode(verb); err != nil {
			return "", fmt.Errorf("encode %T: %w", verb, err)
		}
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return "", fmt.Errorf("encode response end: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return "", fmt.Errorf("flush: %w", err)
	}

	return buf.String(), nil
}

// Summary возвращает краткое описание документа для логов,
// например "Say,Pause,Gather".
func (r *Response) Summary() string {
	names := make([]string, 0, len(r.verbs))
	for _, verb := range r.verbs {
		name := fmt.Sprintf("%T", verb)
		if i := strings.LastIndex(name, "."); i >= 0 {
			name = name[i+1:]
		}
		names = append(names, name)
	}
	return strings.Join(names, ",")
}
