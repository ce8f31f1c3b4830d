// Package bot — диспетчер авто-ответов поверх gateway, keywords и throttle.
// Бот:
//   - отвечает на сообщение, целиком совпадающее с ключом (или алиасом);
//   - разбирает команды после префикса (add, edit, remove, alias, rename,
//     list, prefix, setRole и др.), изменяющие доступны владельцу и роли roleID;
//   - ищет OCR-триггеры в тексте картинок, если подключён распознаватель;
//   - пропускает каждый ответ через throttle.Gate: Warn — предупреждение
//     текстом, Mute — только реакция.
//
// Сбой сохранения хранилища фатален: ошибка приходит в Err()/Wait(), и
// процесс должен завершиться.
//
// Пример:
//
//	b := bot.New(bot.Options{Store: store, Gateway: gw, Channels: ids})
//	if err := b.Start(ctx); err != nil { return err }
//	defer b.Stop()
//	return b.Wait(ctx)
package bot
