package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/naparnik-ai/copilot/core"
	"github.com/naparnik-ai/copilot/internal/textutil"
	"github.com/naparnik-ai/copilot/tools"
)

type askArgs struct {
	Question            string `json:"question" description:"Вопрос для модели 1С.ai"`
	ProgrammingLanguage string `json:"programming_language,omitempty" description:"Язык программирования (опционально)"`
	CreateNewSession    bool   `json:"create_new_session,omitempty" description:"Создать новую сессию для этого вопроса" default:"false"`
}

type explainArgs struct {
	SyntaxElement string `json:"syntax_element" description:"Элемент синтаксиса или объект 1С для объяснения (например: HTTPСоединение, HTTPЗапрос, ТаблицаЗначений, РегистрСведений, Документ, Справочник, Запрос, Для Каждого, Если, Процедура, Функция)"`
	Context       string `json:"context,omitempty" description:"Дополнительный контекст использования (опционально)"`
}

type checkArgs struct {
	Code      string `json:"code" description:"Код 1С для проверки и анализа"`
	CheckType string `json:"check_type,omitempty" description:"Тип проверки: syntax (синтаксис), logic (логика), performance (производительность)" enum:"syntax,logic,performance" default:"syntax"`
}

// checkDescriptions phrases the review focus inserted into the question and
// the result heading. Unknown values fall back to a generic phrasing; schema
// validation normally rejects them before a handler runs.
var checkDescriptions = map[string]string{
	"syntax":      "синтаксические ошибки",
	"logic":       "логические ошибки и потенциальные проблемы",
	"performance": "проблемы производительности и оптимизации",
}

// Catalog builds the three tools backed by the gateway the resolver yields.
// Resolution happens per call so a missing credential surfaces as a tool
// error instead of preventing startup.
func Catalog(resolve GatewayFactory) []tools.Handle {
	return []tools.Handle{
		tools.New[askArgs](
			"ask_1c_ai",
			"🔍 Задать любой вопрос специализированному ИИ-ассистенту 1С.ai (1С:Напарник) по платформе 1С:Предприятие. Используется для вопросов о 1С, конфигурации, объектах платформы, встроенном языке, API, интеграции и разработке.",
			func(ctx context.Context, in askArgs, meta tools.Meta) (string, error) {
				if strings.TrimSpace(in.Question) == "" {
					return "", core.NewError(core.ErrEmptyInput, "Вопрос не может быть пустым")
				}
				gw, err := resolve()
				if err != nil {
					return "", err
				}
				answer, err := gw.Ask(ctx, core.AskRequest{
					Question:            in.Question,
					ProgrammingLanguage: in.ProgrammingLanguage,
					ForceNew:            in.CreateNewSession,
				})
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Ответ от 1С.ai:\n\n%s\n\nСессия: %s",
					textutil.Sanitize(answer.Text), answer.ConversationID), nil
			}),

		tools.New[explainArgs](
			"explain_1c_syntax",
			"📚 Объяснить синтаксис, конструкции и объекты языка 1С:Предприятие. Используется для объяснения HTTPСоединение, HTTPЗапрос, ТаблицаЗначений, Запрос, РегистрСведений, Документ, Справочник, Для Каждого, Если, Процедура, Функция и других элементов 1С.",
			func(ctx context.Context, in explainArgs, meta tools.Meta) (string, error) {
				if strings.TrimSpace(in.SyntaxElement) == "" {
					return "", core.NewError(core.ErrEmptyInput, "Элемент синтаксиса не может быть пустым")
				}
				gw, err := resolve()
				if err != nil {
					return "", err
				}
				question := "Объясни синтаксис и использование: " + in.SyntaxElement
				if in.Context != "" {
					question += " в контексте: " + in.Context
				}
				answer, err := gw.Ask(ctx, core.AskRequest{Question: question})
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Объяснение синтаксиса '%s':\n\n%s",
					in.SyntaxElement, textutil.Sanitize(answer.Text)), nil
			}),

		tools.New[checkArgs](
			"check_1c_code",
			"🔧 Проверить и проанализировать код 1С:Предприятие на ошибки, производительность и соответствие лучшим практикам. Используется для валидации кода на встроенном языке 1С.",
			func(ctx context.Context, in checkArgs, meta tools.Meta) (string, error) {
				if strings.TrimSpace(in.Code) == "" {
					return "", core.NewError(core.ErrEmptyInput, "Код для проверки не может быть пустым")
				}
				gw, err := resolve()
				if err != nil {
					return "", err
				}
				focus, ok := checkDescriptions[in.CheckType]
				if !ok {
					if in.CheckType == "" {
						focus = checkDescriptions["syntax"]
					} else {
						focus = "ошибки"
					}
				}
				question := fmt.Sprintf(
					"Проверь этот код 1С на %s и дай рекомендации:\n\n```1c\n%s\n```", focus, in.Code)
				answer, err := gw.Ask(ctx, core.AskRequest{Question: question})
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Проверка кода на %s:\n\n%s",
					focus, textutil.Sanitize(answer.Text)), nil
			}),
	}
}
