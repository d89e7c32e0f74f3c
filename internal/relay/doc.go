// Package relay подключает бота к внешнему чат-релею по WebSocket.
//
// Релей пересылает боту сообщения пользователей и принимает ответы. Каждый
// кадр — бинарное сообщение с protobuf-кодированным google.protobuf.Struct:
//
//	type        "message" (релей -> бот) | "reply" | "summary" (бот -> релей)
//	user_id     автор сообщения / адресат ответа
//	channel_id  канал
//	text        текст сообщения или ответа
//	ephemeral   показать только автору (извинения об ошибках)
//	summary     карточка прогноза или справки, только у "summary"
//
// Клиент авторизуется заголовком Authorization: Bearer <token>, держит
// соединение пингами, при обрыве переподключается с экспоненциальной
// задержкой. Запись в сокет сериализована мьютексом.
//
// Пример:
//
//	c := relay.New(b, relay.Options{URL: "wss://relay.example/ws", Token: tok})
//	if err := c.Run(ctx); err != nil { log.Fatal(err) }
package relay
