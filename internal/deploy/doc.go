// Package deploy загружает, проверяет и регистрирует описания deployment.
//
// Расписание (cron) только проверяется и показывается: создавать runs
// по нему должен внешний оркестратор.
package deploy
