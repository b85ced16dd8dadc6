package domain

import "fmt"

// NodeType — тип узла в графе обзвона.
//
// Каждый тип соответствует одному поведению узла: произнести текст,
// собрать ввод, ветвление, внешний запрос, захват данных, AI-диалог,
// отправка SMS или завершение звонка.
type NodeType string

const (
	// NodeInitial — точка входа графа. Ровно один на flow.
	NodeInitial NodeType = "INITIAL"

	// NodeSay — произнести сообщение и перейти дальше.
	NodeSay NodeType = "SAY"

	// NodeGather — собрать нажатые цифры или речь.
	NodeGather NodeType = "GATHER"

	// NodeCondition — ветвление по нажатой цифре (ifEqual / ifNotEqual).
	NodeCondition NodeType = "CONDITION"

	// NodeMakeRequest — внешний HTTP-запрос, результат в контекст переменных.
	NodeMakeRequest NodeType = "MAKE_REQUEST"

	// NodeCapture — сохранить собранные данные как durable запись.
	NodeCapture NodeType = "CAPTURE"

	// NodeHangup — терминальный узел, завершает звонок.
	NodeHangup NodeType = "HANGUP"

	// NodeOpenAI — разговорный AI-узел (transcript + языковая модель).
	NodeOpenAI NodeType = "OPENAI"

	// NodeSendMsg — отправить SMS через линию аккаунта.
	NodeSendMsg NodeType = "SEND_MSG"
)

// Valid возвращает true для известных типов узлов.
func (t NodeType) Valid() bool {
	switch t {
	case NodeInitial, NodeSay, NodeGather, NodeCondition, NodeMakeRequest,
		NodeCapture, NodeHangup, NodeOpenAI, NodeSendMsg:
		return true
	default:
		return false
	}
}

// Terminal возвращает true, если узел завершает звонок.
func (t NodeType) Terminal() bool {
	return t == NodeHangup
}

// DigitOther — wildcard-ветка в таблице цифр: срабатывает,
// когда точного совпадения по нажатой цифре нет.
const DigitOther = "OTHER"

// DigitBranch — одна строка таблицы цифр узла GATHER:
// нажатая цифра → идентификатор исходящего порта.
type DigitBranch struct {
	// Digit — цифра ("0".."9", "#", "*") или DigitOther.
	Digit string `json:"digit"`

	// ID — sourceHandle ребра, ведущего к следующему узлу.
	ID string `json:"id"`
}

// ConditionBranch — ветка узла CONDITION.
type ConditionBranch struct {
	// Digit — цифра для сравнения (может содержать placeholder).
	Digit string `json:"digit"`

	// ID — узел, на который редиректить при срабатывании ветки.
	ID string `json:"id"`
}

// KV — пара ключ/значение для заголовков и тела MAKE_REQUEST.
type KV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// VoiceConfig — голос и язык синтеза речи для узла.
type VoiceConfig struct {
	// Language — locale синтеза, например "en-US", "hi-IN".
	Language string `json:"language,omitempty"`

	// Voice — имя голоса, например "Polly.Joanna".
	Voice string `json:"voice,omitempty"`
}

// TaskRef — задача, доступная AI-узлу как function call.
// Модель может выбрать задачу по описанию; ID — узел, куда редиректить.
type TaskRef struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// NodeData — type-специфичные данные узла.
//
// Заполняются редактором flow; какие поля имеют смысл, зависит от Node.Type.
type NodeData struct {
	// Message — шаблон сообщения (SAY, GATHER prompt, CAPTURE, SEND_MSG, HANGUP farewell).
	Message string `json:"message,omitempty"`

	// Voice — настройки синтеза речи.
	Voice *VoiceConfig `json:"voice,omitempty"`

	// Digits — таблица цифровых веток (GATHER).
	Digits []DigitBranch `json:"digits,omitempty"`

	// IfEqual / IfNotEqual — ветки CONDITION.
	IfEqual    *ConditionBranch `json:"if_equal,omitempty"`
	IfNotEqual *ConditionBranch `json:"if_not_equal,omitempty"`

	// Method, URL, Body, Headers — спецификация MAKE_REQUEST.
	Method  string `json:"method,omitempty"`
	URL     string `json:"url,omitempty"`
	Body    []KV   `json:"body,omitempty"`
	Headers []KV   `json:"headers,omitempty"`

	// OpeningSay — первая реплика AI-узла (OPENAI).
	OpeningSay string `json:"opening_say,omitempty"`

	// SystemPrompt — системная инструкция модели.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Model — имя языковой модели.
	Model string `json:"model,omitempty"`

	// APIKey — ключ доступа к модели (хранится в данных узла редактором).
	APIKey string `json:"api_key,omitempty"`

	// HistoryWindow — сколько последних реплик transcript отдавать модели.
	HistoryWindow int `json:"history_window,omitempty"`

	// WordsPerSec — скорость речи для оценки паузы после Say.
	WordsPerSec int `json:"words_per_sec,omitempty"`

	// Tasks + AllowTasks — список function-call задач AI-узла.
	Tasks      []TaskRef `json:"tasks,omitempty"`
	AllowTasks bool      `json:"allow_tasks,omitempty"`

	// DeviceID — линия-отправитель для SEND_MSG (по умолчанию линия звонка).
	DeviceID string `json:"device_id,omitempty"`
}

// Node — один узел графа обзвона.
type Node struct {
	// ID — уникальный идентификатор узла в рамках flow.
	ID string `json:"id"`

	// Type — тип узла.
	Type NodeType `json:"type"`

	// Data — type-специфичные данные.
	Data NodeData `json:"data"`
}

// Edge — направленное ребро графа.
//
// SourceHandle идентифицирует конкретный исходящий порт: сам узел для
// линейного перехода либо ID цифровой/условной ветки.
type Edge struct {
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
}

// FlowGraph — граф обзвона одного аккаунта: набор узлов и рёбер.
//
// Неизменяем в течение звонка; мутируется только внешним редактором.
type FlowGraph struct {
	// AccountID — владелец графа.
	AccountID string `json:"account_id"`

	// FlowID — идентификатор графа в рамках аккаунта.
	FlowID string `json:"flow_id"`

	// Version — номер версии документа.
	Version int `json:"version"`

	// Nodes — все узлы графа.
	Nodes []Node `json:"nodes"`

	// Edges — все рёбра графа.
	Edges []Edge `json:"edges"`
}

// FindNode возвращает узел по ID или nil.
func (g *FlowGraph) FindNode(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// FindInitial возвращает узел типа INITIAL или nil.
func (g *FlowGraph) FindInitial() *Node {
	for i := range g.Nodes {
		if g.Nodes[i].Type == NodeInitial {
			return &g.Nodes[i]
		}
	}
	return nil
}

// EdgeFrom возвращает ребро с данным sourceHandle или nil.
func (g *FlowGraph) EdgeFrom(handle string) *Edge {
	for i := range g.Edges {
		if g.Edges[i].SourceHandle == handle {
			return &g.Edges[i]
		}
	}
	return nil
}

// Ref — человекочитаемая ссылка на граф для логов и ошибок.
func (g *FlowGraph) Ref() string {
	return fmt.Sprintf("%s/%s@v%d", g.AccountID, g.FlowID, g.Version)
}
