// Package pipeline связывает ядро engine с внешними системами.
//
// Pipeline.Run получает сырые данные через fetch.Fetcher, сохраняет
// артефакты каждого этапа в storage.Store и отправляет событие
// rejected или completed через notify.Notifier. Повторов внутри нет:
// решение о retry принимает вызывающая сторона (worker).
package pipeline
