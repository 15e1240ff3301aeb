// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

// Route pattern constants for chi router registration.
const (
	// RouteRoot is the builder start page.
	RouteRoot = "/"
	// RouteLogin is the builder login route.
	RouteLogin = "/login"
	// RouteRegister is the builder registration route.
	RouteRegister = "/register"
	// RouteLogout is the builder logout route.
	RouteLogout = "/logout"
	// RouteDashboard is the signed-in user's overview.
	RouteDashboard = "/dashboard"
	// RouteEditor is the site management area for users and admins.
	RouteEditor = "/editor"
	// RouteAdmin is the admin console.
	RouteAdmin = "/admin"
	// RouteHealth is the liveness check.
	RouteHealth = "/health"
	// RouteLanguage switches the UI language.
	RouteLanguage = "/lang/{code}"
	// RouteCMS is the single CMS entry point.
	RouteCMS = "/cms"
	// RouteSites serves generated sites.
	RouteSites = "/sites/*"
	// RouteStatic serves the application's own assets.
	RouteStatic = "/static/*"
)

// Builder form actions.
const (
	actionPreview       = "preview"
	actionGenerate      = "generate"
	actionDeleteSite    = "delete_site"
	actionCreateUser    = "create_user"
	actionUpdateRole    = "update_role"
	actionResetPassword = "reset_password"
	actionDeleteUser    = "delete_user"
)

// HeaderContentType is the Content-Type HTTP header name.
const HeaderContentType = "Content-Type"
