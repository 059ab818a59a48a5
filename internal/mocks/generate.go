// Package mocks provides gomock implementations of the repository interfaces in internal/core.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockProjectRepository(ctrl)
//	repo.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(project, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=account_repository_mock.go github.com/target/projectdesk/internal/core AccountRepository

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=project_repository_mock.go github.com/target/projectdesk/internal/core ProjectRepository
