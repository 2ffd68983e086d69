package fakebackend

// Route path constants, relative to the server root. The client's base URL is URL()+"/api".
const (
	RouteLogin             = "/api/auth/login"
	RouteRegister          = "/api/auth/register"
	RouteRefresh           = "/api/auth/refresh"
	RouteRevoke            = "/api/auth/revoke"
	RouteRevokeAll         = "/api/auth/revoke-all"
	RouteTelegramLoginInit = "/api/auth/telegram-login-init"
	RouteTelegramLoginPoll = "/api/auth/telegram-login-poll/{token}"
	RouteTelegramWebLogin  = "/api/auth/telegram-web-login"
	RouteTelegramWebApp    = "/api/auth/telegram-webapp"

	RouteUser              = "/api/users/{userId}"
	RouteUserTimeZone      = "/api/users/{userId}/timezone"
	RouteTelegramLinkToken = "/api/users/{userId}/telegram-link-token"
	RouteTelegramLink      = "/api/users/{userId}/telegram-link"

	RouteMedications = "/api/users/{userId}/medications"
	RouteMedication  = "/api/users/{userId}/medications/{id}"
	RouteIntakes     = "/api/users/{userId}/intakes"
	RouteIntake      = "/api/users/{userId}/intakes/{id}"
	RouteReminders   = "/api/users/{userId}/reminders"
	RouteReminder    = "/api/users/{userId}/reminders/{id}"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("POST "+RouteLogin, s.LoginHandler())
	s.RegisterRouteFunc("POST "+RouteRegister, s.RegisterHandler())
	s.RegisterRouteFunc("POST "+RouteRefresh, s.RefreshHandler())
	s.RegisterRouteFunc("POST "+RouteRevoke, s.RevokeHandler())
	s.RegisterRouteFunc("POST "+RouteRevokeAll, s.RequireBearer(s.RevokeAllHandler()))

	s.RegisterRouteFunc("POST "+RouteTelegramLoginInit, s.TelegramLoginInitHandler())
	s.RegisterRouteFunc("GET "+RouteTelegramLoginPoll, s.TelegramLoginPollHandler())
	s.RegisterRouteFunc("POST "+RouteTelegramWebLogin, s.TelegramWebLoginHandler())
	s.RegisterRouteFunc("POST "+RouteTelegramWebApp, s.TelegramWebAppHandler())

	s.RegisterRouteFunc("GET "+RouteUser, s.RequireOwner(s.GetUserHandler()))
	s.RegisterRouteFunc("PUT "+RouteUser, s.RequireOwner(s.UpdateUserHandler()))
	s.RegisterRouteFunc("PUT "+RouteUserTimeZone, s.RequireOwner(s.UpdateTimeZoneHandler()))
	s.RegisterRouteFunc("POST "+RouteTelegramLinkToken, s.RequireOwner(s.TelegramLinkTokenHandler()))
	s.RegisterRouteFunc("DELETE "+RouteTelegramLink, s.RequireOwner(s.UnlinkTelegramHandler()))

	s.RegisterRouteFunc("GET "+RouteMedications, s.RequireOwner(s.ListMedicationsHandler()))
	s.RegisterRouteFunc("POST "+RouteMedications, s.RequireOwner(s.CreateMedicationHandler()))
	s.RegisterRouteFunc("GET "+RouteMedication, s.RequireOwner(s.GetMedicationHandler()))
	s.RegisterRouteFunc("PUT "+RouteMedication, s.RequireOwner(s.UpdateMedicationHandler()))
	s.RegisterRouteFunc("DELETE "+RouteMedication, s.RequireOwner(s.DeleteMedicationHandler()))

	s.RegisterRouteFunc("GET "+RouteIntakes, s.RequireOwner(s.ListIntakesHandler()))
	s.RegisterRouteFunc("POST "+RouteIntakes, s.RequireOwner(s.CreateIntakeHandler()))
	s.RegisterRouteFunc("GET "+RouteIntake, s.RequireOwner(s.GetIntakeHandler()))
	s.RegisterRouteFunc("PUT "+RouteIntake, s.RequireOwner(s.UpdateIntakeHandler()))
	s.RegisterRouteFunc("DELETE "+RouteIntake, s.RequireOwner(s.DeleteIntakeHandler()))

	s.RegisterRouteFunc("GET "+RouteReminders, s.RequireOwner(s.ListRemindersHandler()))
	s.RegisterRouteFunc("POST "+RouteReminders, s.RequireOwner(s.CreateReminderHandler()))
	s.RegisterRouteFunc("GET "+RouteReminder, s.RequireOwner(s.GetReminderHandler()))
	s.RegisterRouteFunc("DELETE "+RouteReminder, s.RequireOwner(s.DeleteReminderHandler()))
}
