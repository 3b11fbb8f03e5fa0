package bot

// All user-facing bot messages in one place.

// ── /start & /help ──────────────────────────────────────────────────

const msgStart = `<b>Вітаю в Blackout Watch!</b>

Я стежу за графіками відключень світла для вашої адреси та повідомляю, щойно графік змінюється.

/subscribe - Підписатися на адресу
/list - Мої підписки
/schedule - Поточний графік для підписки
/alert - Попередження перед відключенням
/unsubscribe - Відписатися від адреси
/help - Детальніше`

const msgHelp = `<b>Як це працює:</b>

1. Використайте /subscribe та вкажіть адресу у форматі <i>Місто, вулиця, будинок</i>
2. Я періодично перевіряю графік відключень для вашої адреси
3. Коли графік змінюється — надсилаю оновлення
4. Командою /alert N увімкніть попередження за N хвилин до початку відключення

<b>Команди:</b>
/subscribe — підписатися на нову адресу
/list — показати всі підписки
/schedule — поточний графік для підписки
/alert N — попереджати за N хвилин до відключення (0 — вимкнути)
/unsubscribe — відписатися
/cancel — скасувати поточну операцію`

// ── Generic / errors ────────────────────────────────────────────────

const (
	msgError          = "Щось пішло не так. Спробуйте пізніше."
	msgCancelled      = "Операцію скасовано."
	msgBadAddress     = "Невірний формат адреси. Надішліть: <i>Місто, вулиця, будинок</i>"
	msgNoSubsYet      = "У вас ще немає підписок.\n\nДодайте першу через /subscribe"
	msgNoScheduleYet  = "Графік для цієї адреси ще не отримано. Зачекайте кілька хвилин."
	msgUnknownCommand = "Невідома команда. /help — список команд."
)

// ── /subscribe flow ─────────────────────────────────────────────────

const (
	msgSubscribePrompt = "Надішліть адресу у форматі:\n<i>Місто, вулиця, будинок</i>\n\nНаприклад: <i>Київ, Хрещатик, 12</i>"
	msgSubscribed      = "✅ Підписку створено!\n\n📍 %s\n\nПерша перевірка графіку вже запланована."
)

// ── /unsubscribe ────────────────────────────────────────────────────

const (
	msgUnsubHeader   = "Оберіть адресу для відписки:"
	msgUnsubscribed  = "✅ Підписку видалено"
	msgUnsubNotFound = "Підписку не знайдено"
)

// ── /alert ──────────────────────────────────────────────────────────

const (
	msgAlertUsage    = "Вкажіть кількість хвилин: <i>/alert 30</i>\n\n0 — вимкнути попередження."
	msgAlertEnabled  = "⏰ Попереджатиму за %d хв до початку відключення (для всіх ваших підписок)."
	msgAlertDisabled = "Попередження вимкнено."
)
