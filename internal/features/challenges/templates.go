// Package challenges — templates.go содержит фиксированный пул шаблонов
// ежедневных заданий и определения достижений.
package challenges

import "serotonyl.ru/mining-bot/internal/features/economy"

// templatePool — пул из семи шаблонов; ежедневный набор — три из них
// без повторов.
var templatePool = []Template{
	{Code: "shift", Type: CounterMineCount, Title: "Смена в шахте: заверши 3 сессии", Target: 3, Reward: 50},
	{Code: "marathon", Type: CounterMineCount, Title: "Марафон: заверши 5 сессий", Target: 5, Reward: 100},
	{Code: "harvest", Type: CounterDataEarned, Title: "Урожай: выведи 300 кристаллов", Target: 300, Reward: 120},
	{Code: "jackpot", Type: CounterDataEarned, Title: "Большой куш: выведи 600 кристаллов", Target: 600, Reward: 250},
	{Code: "collector", Type: CounterRareDrops, Title: "Коллекционер: поймай 2 редкие жилы", Target: 2, Reward: 150},
	{Code: "overdrive", Type: CounterComboLevel, Title: "Разгон: добей комбо до уровня 2", Target: 2, Reward: 100},
	{Code: "sprint", Type: CounterMineSpeed, Title: "Спринт: 2 сессии короче 15 секунд", Target: 2, Threshold: 15, Reward: 80},
}

// achievementDefs — достижения в порядке отображения.
// Порядок важен: новые открытия возвращаются пачкой именно в нём.
var achievementDefs = []AchievementDef{
	{
		Code: "first_shift", Title: "Первая смена", Reward: 25,
		Check: func(c economy.LifetimeCounters) bool { return c.Sessions >= 1 },
	},
	{
		Code: "veteran", Title: "Ветеран шахты", Reward: 500,
		Check: func(c economy.LifetimeCounters) bool { return c.Sessions >= 100 },
	},
	{
		Code: "thousandaire", Title: "Тысячник", Reward: 300,
		Check: func(c economy.LifetimeCounters) bool { return c.Earned >= 1000 },
	},
	{
		Code: "vein_hunter", Title: "Охотник за жилами", Reward: 200,
		Check: func(c economy.LifetimeCounters) bool { return c.Rare >= 10 },
	},
	{
		Code: "combo_master", Title: "Мастер комбо", Reward: 400,
		Check: func(c economy.LifetimeCounters) bool { return c.BestCombo >= 4 },
	},
	{
		Code: "reliable", Title: "Надёжный вывод", Reward: 150,
		Check: func(c economy.LifetimeCounters) bool { return c.Claims >= 10 },
	},
}
