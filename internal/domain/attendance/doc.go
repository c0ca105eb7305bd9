// Package attendance содержит доменную модель учёта посещаемости стажёров.
//
// Весь набор данных (список стажёров и дневные отметки) хранится одним
// JSON-документом по пути data/attendance.json. Пакет определяет:
//
//   - Сущности: Intern, Record, Data (корневой агрегат)
//   - Политику отметок: Policy, ClassifyCheckIn, ClassifyLeave
//   - Интерфейсы хранилищ: Repository, DocumentStore, FallbackStore
//
// # Архитектурные принципы
//
//  1. Нулевые внешние зависимости - только стандартная библиотека Go
//  2. Dependency Inversion - интерфейсы реализуются в infrastructure
//  3. Инвариант "одна запись на стажёра в день" обеспечивается только
//     через Data.Upsert (remove-then-insert), а не проверкой при чтении
//
// # Отметки
//
// Отметка о приходе классифицируется по местному времени:
//
//	policy := DefaultPolicy() // опоздание после 09:05
//	c := policy.ClassifyCheckIn(now)
//	// 09:05:59 -> Present, "On time"
//	// 09:06:00 -> Late, "Arrived at 09:06"
//
// Повторная отметка за тот же день перезаписывает предыдущую:
// действует последнее действие дня, а не первое.
//
// # Удаление стажёров
//
// RemoveIntern не трогает исторические записи. Они продолжают
// отображаться по сохранённому снимку InternName.
package attendance
