package scheduler

// HourSeconds - длина одного рубежа
const HourSeconds = 3600

// Detection - найденный непройденный рубеж
type Detection struct {
	Hours      int     // наибольший час, за который засчитывается посещение
	Milestones []int64 // все рубежи (в секундах), которые нужно отметить
}

// Detect ищет часовые рубежи, о которых еще не сообщалось.
// Сначала ищутся все пропущенные рубежи до текущего часа. Если их нет и проверка живая,
// текущий час засчитывается при непрерывном отрезке не короче часа.
func Detect(total float64, notified func(int64) bool, segment float64, live bool) (Detection, bool) {
	hours := int(total / HourSeconds)
	if hours < 1 {
		return Detection{}, false
	}

	var missing []int64
	for h := 1; h <= hours; h++ {
		m := int64(h) * HourSeconds
		if !notified(m) {
			missing = append(missing, m)
		}
	}
	if len(missing) > 0 {
		return Detection{Hours: hours, Milestones: missing}, true
	}

	current := int64(hours) * HourSeconds
	if live && !notified(current) && segment >= HourSeconds {
		return Detection{Hours: hours, Milestones: []int64{current}}, true
	}
	return Detection{}, false
}
