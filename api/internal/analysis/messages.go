package analysis

import "fmt"

// QuotaHeadline appears in every quota advisory.
const QuotaHeadline = "Превышен лимит запросов API Gemini"

const analysisQuotaAdvisory = `### ⚠️ ` + QuotaHeadline + `

Вы превысили бесплатную квоту запросов к API Gemini. Варианты решения:

1. Подождите некоторое время (обычно квота сбрасывается через 60 секунд или 24 часа)
2. Зарегистрируйте платный аккаунт в Google AI Studio
3. Используйте другой API-ключ

Подробнее: [Лимиты API Gemini](https://ai.google.dev/gemini-api/docs/rate-limits)`

const simplifyQuotaAdvisory = `### ⚠️ ` + QuotaHeadline + `

Вы превысили бесплатную квоту запросов к API Gemini. Пожалуйста, попробуйте позже или обновите свой план.`

// QuotaSolutions is the extra help block the UI shows under an analysis quota advisory.
const QuotaSolutions = `### Решения проблемы с квотой:

1. Подождите несколько минут и попробуйте снова
2. Создайте новый API-ключ в [Google AI Studio](https://makersuite.google.com/app/apikey)
3. Перейдите на платный тариф`

const (
	analysisFailedPrefix = "Произошла ошибка при анализе изображения: "
	simplifyFailedPrefix = "Произошла ошибка при упрощении объяснения: "
)

func fallbackNotice(primary string) string {
	return fmt.Sprintf("Превышена квота для модели %s. Пробуем использовать альтернативную модель.", primary)
}
