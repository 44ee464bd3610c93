package crawler

import (
	"context"
	"io"
	"strings"
	"sync"
)

// MockFetcher serves canned HTML per URL for testing
type MockFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	err   error
	calls []string
}

func NewMockFetcher(pages map[string]string) *MockFetcher {
	return &MockFetcher{pages: pages}
}

func (m *MockFetcher) Fetch(_ context.Context, url string) (io.Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, url)
	if m.err != nil {
		return nil, m.err
	}
	return strings.NewReader(m.pages[url]), nil
}

const menuHTML = `<html><body>
<ul class="list_area">
	<li>
		<a href="/ca-fe/web/cafes/30131231/articles/105?menuId=67" class="thumb_area"><img src="t.png"></a>
		<a href="/ca-fe/web/cafes/30131231/articles/105?menuId=67" class="txt_area">
			<strong class="tit">  10월 4주차   업데이트 안내 </strong>
			<span class="nick">운영자</span>
		</a>
	</li>
	<li><a href="/ca-fe/web/cafes/30131231/articles/104?menuId=67"><strong class="tit">긴급 점검 안내</strong></a></li>
	<li><a href="https://m.cafe.naver.com/ArticleRead.nhn?clubid=30131231&articleid=103"><strong class="tit">10월 3주차 업데이트 안내</strong></a></li>
	<li><a href="/ca-fe/web/cafes/30131231/articles/102"><strong class="tit">신규 사도 소개</strong></a></li>
	<li><a href="/ca-fe/web/cafes/30131231/articles/101"><strong class="tit">이벤트 당첨자 발표</strong></a></li>
	<li><a href="/ca-fe/web/cafes/30131231/articles/100"><strong class="tit">9월 업데이트 안내</strong></a></li>
	<li><a href="/ca-fe/web/cafes/30131231/menus/67">더보기</a></li>
</ul>
</body></html>`
