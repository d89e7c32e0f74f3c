// Package bot — склейка между чат-платформой и разговором /kingdom. Бот:
//   - обрабатывает команды ping, help и kingdom (слэш-команды или текст с префиксом, по умолчанию "!");
//   - держит реестр живых разговоров по ключу (пользователь, канал);
//   - направляет ответы пользователя в его разговор;
//   - свипером прерывает разговоры, на которые не ответили вовремя;
//   - превращает ошибки платформы в короткие извинения.
//
// Бот не знает про конкретную платформу: хост (discord, relay, console)
// передаёт события и Replier, через который уходят ответы.
//
// Пример:
//
//	b := bot.New(tzresolve.New(tzresolve.DefaultTable(), log), bot.Options{Logger: log})
//	go b.Run(ctx)
//	b.HandleMessage(ctx, bot.Message{UserID: "u", ChannelID: "c", Text: "!kingdom"}, replier)
package bot
