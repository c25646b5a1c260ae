package dialogue

// Button is a transport-neutral inline button: the transport layer
// maps it onto whatever the messenger expects.
type Button struct {
	Label   string
	Payload string
}

// Keyboard is rows of buttons.
type Keyboard [][]Button

// Callback payloads understood by the manager.
const (
	PayloadEventTypeExhibition = "event_type_exhibition"
	PayloadEventTypeConference = "event_type_conference"
	PayloadEventTypeForum      = "event_type_forum"
	PayloadEventTypeSeminar    = "event_type_seminar"
	PayloadEventTypeAny        = "event_type_any"

	PayloadFormatOnline  = "event_format_online"
	PayloadFormatOffline = "event_format_offline"
	PayloadFormatPaid    = "event_format_paid"
	PayloadFormatFree    = "event_format_free"
	PayloadFormatAny     = "event_format_any"

	PayloadConfirmSearch = "confirm_search"
	PayloadEditParams    = "edit_params"
	PayloadCancelSearch  = "cancel_search"

	PayloadAltExpandPeriod = "alt_search_expand_period"
	PayloadAltNewCountry   = "alt_search_new_country"
	PayloadAltStartOver    = "alt_search_start_over"
)

// eventTypeByPayload maps a pressed button to the criteria value; the
// "any" choice leaves the type unconstrained.
var eventTypeByPayload = map[string]string{
	PayloadEventTypeExhibition: "выставка",
	PayloadEventTypeConference: "конференция",
	PayloadEventTypeForum:      "форум",
	PayloadEventTypeSeminar:    "семинар",
	PayloadEventTypeAny:        "",
}

func eventTypeKeyboard() Keyboard {
	return Keyboard{
		{
			{Label: "Выставки", Payload: PayloadEventTypeExhibition},
			{Label: "Конференции", Payload: PayloadEventTypeConference},
		},
		{
			{Label: "Форумы", Payload: PayloadEventTypeForum},
			{Label: "Семинары", Payload: PayloadEventTypeSeminar},
		},
		{
			{Label: "Любой тип", Payload: PayloadEventTypeAny},
		},
	}
}

// formatChoices maps a format payload to the criteria tag it adds.
// Choices accumulate until the user presses "В любом формате".
var formatChoices = map[string]string{
	PayloadFormatOnline:  "формат: онлайн",
	PayloadFormatOffline: "формат: офлайн",
	PayloadFormatPaid:    "участие: платно",
	PayloadFormatFree:    "участие: бесплатно",
}

func formatKeyboard() Keyboard {
	return Keyboard{
		{
			{Label: "Онлайн", Payload: PayloadFormatOnline},
			{Label: "Офлайн", Payload: PayloadFormatOffline},
		},
		{
			{Label: "Платно", Payload: PayloadFormatPaid},
			{Label: "Бесплатно", Payload: PayloadFormatFree},
		},
		{
			{Label: "В любом формате", Payload: PayloadFormatAny},
		},
	}
}

func confirmationKeyboard() Keyboard {
	return Keyboard{
		{
			{Label: "✅ Начать поиск", Payload: PayloadConfirmSearch},
		},
		{
			{Label: "✏️ Изменить параметры", Payload: PayloadEditParams},
			{Label: "❌ Отмена", Payload: PayloadCancelSearch},
		},
	}
}

func alternativesKeyboard() Keyboard {
	return Keyboard{
		{
			{Label: "📅 Расширить период поиска", Payload: PayloadAltExpandPeriod},
		},
		{
			{Label: "🌍 Искать в другой стране", Payload: PayloadAltNewCountry},
		},
		{
			{Label: "🔄 Начать заново", Payload: PayloadAltStartOver},
		},
	}
}
